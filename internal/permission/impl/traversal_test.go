package impl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/internal/permission/impl"
)

// TestTraversalOneHopThroughTimelock is spec.md §8's second scenario: a
// contract owned by a Timelock owned by a Multisig, with the Timelock's
// minDelay contributing a single cumulative-delay step.
func TestTraversalOneHopThroughTimelock(t *testing.T) {
	t.Parallel()
	snapshot := newSnapshot()
	doc := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{
					FunctionName:     "changeAdmin",
					Classification:   permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.timelock"}},
				},
			},
			addr("0x71").Normalized(): {
				{
					FunctionName:     "schedule",
					Classification:   permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.admin"}},
					Delay:            &permission.DelayRef{ContractAddress: addr("0x71"), FieldName: "minDelay"},
				},
			},
		},
	}
	graph := impl.BuildOwnershipGraph(doc)
	eval := impl.NewEvaluator(snapshot)

	directOwners := impl.ResolveOwners(eval, addr("0xC"), doc.Contracts[addr("0xC").Normalized()][0].OwnerDefinitions)
	tr := impl.NewTraversal(snapshot, graph)
	records, warnings := tr.Run(addr("0xC"), directOwners)

	require.Empty(t, warnings)
	require.Len(t, records, 1)
	require.Equal(t, addr("0xA1"), records[0].Address)
	require.Equal(t, permission.AddressTypeMultisig, records[0].AddressType)
	require.Len(t, records[0].Via, 1)
	require.Equal(t, addr("0x71"), records[0].Via[0].Address)
	require.True(t, records[0].Via[0].HasDelay)
	require.Equal(t, uint64(86400), records[0].CumulativeDelay)
}

// TestTraversalTwoNodeCycle is spec.md §8's third scenario: A and B each
// owned by the other yields one cycle warning and zero ultimate owners.
func TestTraversalTwoNodeCycle(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xA"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owner", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xB")}}}},
		{Address: addr("0xB"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owner", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xA")}}}},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")
	doc := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xA").Normalized(): {
				{FunctionName: "f", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owner"}}},
			},
			addr("0xB").Normalized(): {
				{FunctionName: "g", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owner"}}},
			},
		},
	}
	graph := impl.BuildOwnershipGraph(doc)
	eval := impl.NewEvaluator(snapshot)

	directOwners := impl.ResolveOwners(eval, addr("0xA"), doc.Contracts[addr("0xA").Normalized()][0].OwnerDefinitions)
	tr := impl.NewTraversal(snapshot, graph)
	records, warnings := tr.Run(addr("0xA"), directOwners)

	require.Empty(t, records)
	require.Len(t, warnings, 1)
	require.Equal(t, "Cycle detected: eth:0x000000000000000000000000000000000000000a → eth:0x000000000000000000000000000000000000000b → eth:0x000000000000000000000000000000000000000a", warnings[0])
}

// TestTraversalSelfLoop is spec.md §8's self-loop edge case.
func TestTraversalSelfLoop(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xA"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owner", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xA")}}}},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")
	doc := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xA").Normalized(): {
				{FunctionName: "f", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owner"}}},
			},
		},
	}
	graph := impl.BuildOwnershipGraph(doc)
	eval := impl.NewEvaluator(snapshot)

	directOwners := impl.ResolveOwners(eval, addr("0xA"), doc.Contracts[addr("0xA").Normalized()][0].OwnerDefinitions)
	tr := impl.NewTraversal(snapshot, graph)
	records, warnings := tr.Run(addr("0xA"), directOwners)

	require.Empty(t, records)
	require.Len(t, warnings, 1)
	require.Equal(t, "Cycle detected: eth:0x000000000000000000000000000000000000000a → eth:0x000000000000000000000000000000000000000a", warnings[0])
}

// TestTraversalBottomsOutOnContractAbsentFromOverrides covers the Open
// Question resolution in SPEC_FULL.md §10.8(a): a non-terminal address
// absent from the Overrides document halts as if it were terminal.
func TestTraversalBottomsOutOnContractAbsentFromOverrides(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xC"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owner", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xD")}}}},
		{Address: addr("0xD"), Type: permission.AddressTypeContract},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")
	doc := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{FunctionName: "f", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owner"}}},
			},
		},
	}
	graph := impl.BuildOwnershipGraph(doc)
	eval := impl.NewEvaluator(snapshot)

	directOwners := impl.ResolveOwners(eval, addr("0xC"), doc.Contracts[addr("0xC").Normalized()][0].OwnerDefinitions)
	tr := impl.NewTraversal(snapshot, graph)
	records, warnings := tr.Run(addr("0xC"), directOwners)

	require.Empty(t, warnings)
	require.Len(t, records, 1)
	require.Equal(t, addr("0xD"), records[0].Address)
	require.Equal(t, permission.AddressTypeContract, records[0].AddressType)
}

func TestTraversalSiblingBranchesUnaffectedByCycle(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xA"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owners", Value: permission.FieldValue{Kind: permission.FieldValueArray, Array: []permission.FieldValue{
				{Kind: permission.FieldValueAddress, Address: addr("0xB")},
				{Kind: permission.FieldValueAddress, Address: addr("0xE1")},
			}}}}},
		{Address: addr("0xB"), Type: permission.AddressTypeContract,
			Fields: []permission.NamedField{{Name: "owner", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xA")}}}},
		{Address: addr("0xE1"), Type: permission.AddressTypeEOA},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")
	doc := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xA").Normalized(): {
				{FunctionName: "f", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owners"}}},
			},
			addr("0xB").Normalized(): {
				{FunctionName: "g", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.owner"}}},
			},
		},
	}
	graph := impl.BuildOwnershipGraph(doc)
	eval := impl.NewEvaluator(snapshot)

	directOwners := impl.ResolveOwners(eval, addr("0xA"), doc.Contracts[addr("0xA").Normalized()][0].OwnerDefinitions)
	tr := impl.NewTraversal(snapshot, graph)
	records, warnings := tr.Run(addr("0xA"), directOwners)

	require.Len(t, warnings, 1)
	require.Len(t, records, 1)
	require.Equal(t, addr("0xE1"), records[0].Address)
}
