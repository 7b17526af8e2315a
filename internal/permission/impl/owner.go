package impl

import "github.com/onchainwatch/permresolve/internal/permission"

// ResolveOwners runs the Path Evaluator over a function's ordered
// OwnerDefinitions and returns one DirectOwner per produced address (or
// one unresolved-owner record per failed definition), concatenated in
// input order (spec §4.2).
func ResolveOwners(
	eval *Evaluator,
	self permission.Address,
	defs []permission.OwnerDefinition,
) []permission.DirectOwner {
	out := make([]permission.DirectOwner, 0, len(defs))
	for _, def := range defs {
		result := eval.Evaluate(self, def.Path)

		if result.Err != nil {
			out = append(out, permission.DirectOwner{
				Address:      permission.Address{Hex: permission.PlaceholderUnresolvedAddress},
				IsResolved:   false,
				Source:       def,
				ResolveError: result.Err,
			})
			continue
		}

		if len(result.Addresses) == 1 && result.Structured == nil {
			out = append(out, permission.DirectOwner{
				Address:    result.Addresses[0],
				IsResolved: true,
				Source:     def,
			})
			continue
		}

		for _, addr := range result.Addresses {
			owner := permission.DirectOwner{
				Address:    addr,
				IsResolved: true,
				Source:     def,
			}
			if result.Structured != nil {
				structured := *result.Structured
				owner.Structured = &structured
			}
			out = append(out, owner)
		}
	}
	return out
}
