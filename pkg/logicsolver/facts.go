// Package logicsolver is the optional alternative resolution backend
// described in spec.md §4.6: it projects an OverridesDocument and a
// DiscoveredSnapshot into a flat fact set, posts them to an external
// declarative solver, and maps the returned ultimatePermission facts
// back into a ResolvedDocument with the same deduplication semantics
// as the native Traversal Engine.
package logicsolver

import (
	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/internal/permission/impl"
)

// PermissionFact is one `permission(receiver, permissionType, giver,
// delay, description, role)` tuple (spec §4.6, §6).
type PermissionFact struct {
	Receiver       string `json:"receiver"`
	PermissionType string `json:"permissionType"`
	Giver          string `json:"giver"`
	Delay          uint64 `json:"delay"`
	Description    string `json:"description"`
	Role           string `json:"role"`
}

// AddressFact is one `address(addr)` tuple: every distinct address
// appearing anywhere in the fact set, so the solver can enumerate its
// universe of constants.
type AddressFact struct {
	Address string `json:"address"`
}

// AddressTypeFact is one `addressType(addr, type)` tuple.
type AddressTypeFact struct {
	Address string `json:"address"`
	Type    string `json:"type"`
}

// CanActIndependentlyFact is one `canActIndependently(addr)` tuple,
// emitted for every address whose AddressType is terminal (spec §4.5's
// terminal-type rule, reused here as the solver's base case).
type CanActIndependentlyFact struct {
	Address string `json:"address"`
}

// FactSet is the complete flat projection handed to the external
// solver for one resolution run.
type FactSet struct {
	Permissions          []PermissionFact          `json:"permissions"`
	Addresses            []AddressFact              `json:"addresses"`
	AddressTypes         []AddressTypeFact          `json:"addressTypes"`
	CanActIndependently  []CanActIndependentlyFact  `json:"canActIndependently"`
}

// BuildFacts projects the curator's overrides and the discovered
// snapshot into the flat fact shapes an external solver consumes
// (spec §4.6). Path evaluation errors are skipped rather than aborting
// the projection: a function whose owner path cannot be evaluated
// simply contributes no permission fact, mirroring the native engine's
// warning-not-abort treatment of the same failure (spec §7).
func BuildFacts(overrides permission.OverridesDocument, snapshot permission.DiscoveredSnapshot) FactSet {
	eval := impl.NewEvaluator(snapshot)
	delays := impl.NewDelayResolver(snapshot)

	addressType := func(addr permission.Address) permission.AddressType {
		if entry, ok := snapshot.Lookup(addr); ok {
			return entry.Type
		}
		return permission.AddressTypeUnknown
	}

	seenAddr := map[string]permission.AddressType{}
	record := func(addr permission.Address, t permission.AddressType) {
		key := addr.Normalized()
		if _, ok := seenAddr[key]; ok {
			return
		}
		seenAddr[key] = t
	}

	var fs FactSet
	for contractKey, fns := range overrides.Contracts {
		self, ok := permission.ParseQualifiedAddress(contractKey)
		if !ok {
			continue
		}
		record(self, addressType(self))

		for _, fn := range fns {
			if fn.Classification != permission.ClassificationPermissioned {
				continue
			}

			var delay uint64
			if fn.Delay != nil {
				if secs, err := delays.Resolve(*fn.Delay); err == nil {
					delay = secs
				}
			}

			for _, owner := range impl.ResolveOwners(eval, self, fn.OwnerDefinitions) {
				if !owner.IsResolved {
					continue
				}
				ownerType := addressType(owner.Address)
				record(owner.Address, ownerType)

				ptStr := string(addressPermissionType(owner.Source.PermissionType, ownerType))
				fs.Permissions = append(fs.Permissions, PermissionFact{
					Receiver:       self.String(),
					PermissionType: ptStr,
					Giver:          owner.Address.String(),
					Delay:          delay,
					Description:    fn.Description,
					Role:           fn.FunctionName,
				})
			}
		}
	}

	for addr, t := range seenAddr {
		fs.Addresses = append(fs.Addresses, AddressFact{Address: addr})
		fs.AddressTypes = append(fs.AddressTypes, AddressTypeFact{Address: addr, Type: string(t)})
		if t.IsTerminal() {
			fs.CanActIndependently = append(fs.CanActIndependently, CanActIndependentlyFact{Address: addr})
		}
	}

	return fs
}

func addressPermissionType(declared *permission.PermissionType, resolved permission.AddressType) permission.PermissionType {
	if declared != nil {
		return *declared
	}
	return permission.DefaultPermissionType(resolved)
}
