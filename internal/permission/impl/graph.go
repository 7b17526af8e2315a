package impl

import "github.com/onchainwatch/permresolve/internal/permission"

// graphNode is the union of owner definitions and delay references
// gathered across a contract's permissioned functions (spec §4.4).
type graphNode struct {
	ownerDefinitions []permission.OwnerDefinition
	delayRefs        []permission.DelayRef
}

// OwnershipGraph is a read-only, derived projection of an
// OverridesDocument: contractAddress -> the union of owner definitions
// and delay references across all its permissioned functions. It holds
// no references into the original OverridesDocument past construction
// (spec §3 "Ownership model").
type OwnershipGraph struct {
	nodes map[string]graphNode // keyed by Address.Normalized()
}

// BuildOwnershipGraph performs the single pass over doc described in
// spec §4.4. Contracts with zero permissioned functions are still
// present with an empty node, distinguishing "no data" from "not
// present" (checked via Has).
func BuildOwnershipGraph(doc permission.OverridesDocument) *OwnershipGraph {
	g := &OwnershipGraph{nodes: make(map[string]graphNode, len(doc.Contracts))}

	for addr, functions := range doc.Contracts {
		node := graphNode{}
		seenDelay := make(map[permission.DelayRef]struct{})

		for _, fn := range functions {
			if fn.Classification != permission.ClassificationPermissioned {
				continue
			}
			node.ownerDefinitions = append(node.ownerDefinitions, fn.OwnerDefinitions...)
			if fn.Delay != nil {
				if _, ok := seenDelay[*fn.Delay]; !ok {
					seenDelay[*fn.Delay] = struct{}{}
					node.delayRefs = append(node.delayRefs, *fn.Delay)
				}
			}
		}

		g.nodes[addr] = node
	}

	return g
}

// Has reports whether the graph has an entry (possibly empty) for the
// given contract, distinguishing "no data" from "not present" (spec §4.4).
func (g *OwnershipGraph) Has(addr permission.Address) bool {
	_, ok := g.nodes[addr.Normalized()]
	return ok
}

// OwnerDefinitions returns the union of owner definitions declared
// across addr's permissioned functions.
func (g *OwnershipGraph) OwnerDefinitions(addr permission.Address) []permission.OwnerDefinition {
	return g.nodes[addr.Normalized()].ownerDefinitions
}

// DelayRefs returns the distinct delay references declared across
// addr's permissioned functions.
func (g *OwnershipGraph) DelayRefs(addr permission.Address) []permission.DelayRef {
	return g.nodes[addr.Normalized()].delayRefs
}
