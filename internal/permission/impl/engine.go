package impl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// Engine is the default implementation of permission.Resolver: it wires
// the Path Evaluator, Owner Resolver, Delay Resolver, Ownership Graph
// and Traversal Engine together into one resolution run (spec §2, §4.5
// "Outer loop").
type Engine struct{}

// NewEngine builds an Engine. It holds no state between runs: a
// resolution run is a pure function of its two inputs (spec §5).
func NewEngine() *Engine {
	return &Engine{}
}

// Resolve runs one Overrides + Discovered -> Resolved pass (spec §2
// data flow, §4.5 "Outer loop").
func (e *Engine) Resolve(
	_ context.Context,
	overrides permission.OverridesDocument,
	snapshot permission.DiscoveredSnapshot,
) (permission.ResolvedDocument, error) {
	graph := BuildOwnershipGraph(overrides)
	eval := NewEvaluator(snapshot)

	contractAddrs := make([]string, 0, len(overrides.Contracts))
	for addr := range overrides.Contracts {
		contractAddrs = append(contractAddrs, addr)
	}
	sort.Strings(contractAddrs)

	var resolved []permission.ResolvedContract
	for _, addrKey := range contractAddrs {
		fns := overrides.PermissionedFunctions(addrKey)
		if len(fns) == 0 {
			continue
		}

		self, ok := permission.ParseQualifiedAddress(addrKey)
		if !ok {
			return permission.ResolvedDocument{}, fmt.Errorf("malformed contract address key %q", addrKey)
		}

		resolvedFns := make([]permission.ResolvedFunction, 0, len(fns))
		for _, fn := range fns {
			resolvedFns = append(resolvedFns, e.resolveFunction(eval, graph, snapshot, self, fn))
		}

		resolved = append(resolved, permission.ResolvedContract{
			Address:   addrKey,
			Functions: resolvedFns,
		})
	}

	return permission.ResolvedDocument{
		Version:      overrides.Version,
		LastModified: time.Now().UTC(),
		GeneratedFrom: permission.Provenance{
			OverridesVersion: overrides.Version,
			DiscoveredHash:   snapshot.Hash,
		},
		Contracts: resolved,
	}, nil
}

// resolveFunction resolves one permissioned function's direct owners and
// the ultimate owners each leads to via the Traversal Engine (spec
// §4.5 "Outer loop": every successfully resolved direct owner feeds
// traversal, regardless of its PermissionType, which is carried
// through as metadata for consumers such as the Logic Solver's fact
// emission, spec §4.6).
func (e *Engine) resolveFunction(
	eval *Evaluator,
	graph *OwnershipGraph,
	snapshot permission.DiscoveredSnapshot,
	self permission.Address,
	fn permission.FunctionOverride,
) permission.ResolvedFunction {
	directOwners := ResolveOwners(eval, self, fn.OwnerDefinitions)

	var warnings []string
	for _, owner := range directOwners {
		if !owner.IsResolved {
			warnings = append(warnings, fmt.Sprintf(
				"unresolved owner for %s.%s: %s", self.String(), fn.FunctionName, owner.ResolveError,
			))
		}
	}

	traversal := NewTraversal(snapshot, graph)
	ultimateOwners, traceWarnings := traversal.Run(self, directOwners)
	warnings = append(warnings, traceWarnings...)

	return permission.ResolvedFunction{
		FunctionName:   fn.FunctionName,
		DirectOwners:   directOwners,
		UltimateOwners: ultimateOwners,
		Warnings:       warnings,
	}
}
