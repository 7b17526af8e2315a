package impl

import "github.com/onchainwatch/permresolve/internal/permission"

// Traversal performs the branching DFS described in spec §4.5 against
// a fixed snapshot and ownership graph.
type Traversal struct {
	snapshot permission.DiscoveredSnapshot
	graph    *OwnershipGraph
	eval     *Evaluator
	delay    *DelayResolver
	self     permission.Address // the contract whose function is being resolved
}

// NewTraversal builds a Traversal bound to one resolution run's inputs.
func NewTraversal(snapshot permission.DiscoveredSnapshot, graph *OwnershipGraph) *Traversal {
	return &Traversal{
		snapshot: snapshot,
		graph:    graph,
		eval:     NewEvaluator(snapshot),
		delay:    NewDelayResolver(snapshot),
	}
}

// traceResult carries one DFS branch's output: the ultimate owners it
// reached (possibly none, if it ended in a cycle) and any warnings.
type traceResult struct {
	records  []permission.UltimateOwnerRecord
	warnings []string
}

// Run resolves the ultimate owners for one function's direct owners,
// deduplicating and preserving first-appearance order, and collects
// warnings from cycles encountered along the way (spec §4.5 "Outer
// loop"); unresolved delays produce no warning. self is the contract the function is
// defined on: it seeds the per-branch visited set so a chain that
// loops back to its own starting contract is caught as a cycle, even
// though self itself never appears as a via step on a successful
// branch.
func (t *Traversal) Run(self permission.Address, directOwners []permission.DirectOwner) ([]permission.UltimateOwnerRecord, []string) {
	t.self = self
	var records []permission.UltimateOwnerRecord
	var warnings []string

	rootVisited := map[string]struct{}{self.Normalized(): {}}
	for _, owner := range directOwners {
		if !owner.IsResolved {
			continue
		}
		res := t.trace(owner.Address, copyVisitedSet(rootVisited), nil, nil)
		records = append(records, res.records...)
		warnings = append(warnings, res.warnings...)
	}

	return permission.DedupeUltimateOwners(records), warnings
}

// trace implements the recursive DFS step (spec §4.5 "Trace").
func (t *Traversal) trace(
	current permission.Address,
	visited map[string]struct{},
	via []permission.ViaStep,
	delays []uint64,
) traceResult {
	key := current.Normalized()
	if _, ok := visited[key]; ok {
		return traceResult{warnings: []string{t.cycleWarning(via, current)}}
	}

	addrType := t.addressType(current)

	if addrType.IsTerminal() {
		return traceResult{records: []permission.UltimateOwnerRecord{
			newUltimateOwnerRecord(current, addrType, via, delays),
		}}
	}

	if !t.graph.Has(current) || len(t.graph.OwnerDefinitions(current)) == 0 {
		// Bottoms out: an un-annotated intermediate is treated as if
		// terminal (spec §4.5, SPEC_FULL.md §10.8(a)).
		return traceResult{records: []permission.UltimateOwnerRecord{
			newUltimateOwnerRecord(current, addrType, via, delays),
		}}
	}

	stepDelay, hasDelay := t.maxStepDelay(current)

	nextVisited := copyVisitedSet(visited)
	nextVisited[key] = struct{}{}

	nextVia := append(append([]permission.ViaStep{}, via...), permission.ViaStep{
		Address:     current,
		AddressType: addrType,
		HasDelay:    hasDelay,
		DelaySecs:   stepDelay,
	})

	nextDelays := delays
	if stepDelay > 0 {
		nextDelays = append(append([]uint64{}, delays...), stepDelay)
	}

	owners := ResolveOwners(t.eval, current, t.graph.OwnerDefinitions(current))

	var out traceResult
	for _, owner := range owners {
		if !owner.IsResolved {
			continue
		}
		child := t.trace(owner.Address, nextVisited, nextVia, nextDelays)
		out.records = append(out.records, child.records...)
		out.warnings = append(out.warnings, child.warnings...)
	}
	return out
}

// addressType looks up current's AddressType in the snapshot; an
// address absent from the snapshot is treated as Unknown (terminal).
func (t *Traversal) addressType(addr permission.Address) permission.AddressType {
	entry, ok := t.snapshot.Lookup(addr)
	if !ok {
		return permission.AddressTypeUnknown
	}
	return entry.Type
}

// maxStepDelay computes stepDelay for a transition through current:
// the maximum of resolved positive delay values across its DelayRefs.
// Unresolved delays are treated as zero and contribute no warning here
// (spec §4.5).
func (t *Traversal) maxStepDelay(current permission.Address) (uint64, bool) {
	var max uint64
	found := false
	for _, ref := range t.graph.DelayRefs(current) {
		secs, err := t.delay.Resolve(ref)
		if err != nil || secs == 0 {
			continue
		}
		if secs > max {
			max = secs
		}
		found = true
	}
	return max, found
}

// cycleWarning formats spec §4.5's "Cycle detected: a → b → … → current"
// message. The chain searched for current's first occurrence is self
// (the root contract, which precedes via but is never itself a via
// step) followed by via, so a cycle that loops back to the starting
// contract still names it as the chain's head.
func (t *Traversal) cycleWarning(via []permission.ViaStep, current permission.Address) string {
	chain := []permission.Address{t.self}
	for _, v := range via {
		chain = append(chain, v.Address)
	}

	start := 0
	for i, addr := range chain {
		if addr.Equal(current) {
			start = i
			break
		}
	}

	e := &permission.ErrCycleDetected{}
	for _, addr := range chain[start:] {
		e.Via = append(e.Via, addr.String())
	}
	e.Via = append(e.Via, current.String())
	return e.Error()
}

func newUltimateOwnerRecord(
	addr permission.Address,
	addrType permission.AddressType,
	via []permission.ViaStep,
	delays []uint64,
) permission.UltimateOwnerRecord {
	var cumulative uint64
	for _, d := range delays {
		cumulative += d
	}
	return permission.UltimateOwnerRecord{
		Address:         addr,
		AddressType:     addrType,
		Via:             append([]permission.ViaStep{}, via...),
		Delays:          append([]uint64{}, delays...),
		CumulativeDelay: cumulative,
	}
}

func copyVisitedSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in)+1)
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
