package logicsolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/pkg/logicsolver"
)

func addr(hex string) permission.Address {
	return permission.NewAddress("eth", hex)
}

func TestBuildFactsEmitsOnePermissionFactPerResolvedOwner(t *testing.T) {
	t.Parallel()
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xC"), Type: permission.AddressTypeContract, Fields: []permission.NamedField{
			{Name: "admin", Value: permission.FieldValue{Kind: permission.FieldValueAddress, Address: addr("0xE1"), AddressType: permission.AddressTypeEOA}},
		}},
		{Address: addr("0xE1"), Type: permission.AddressTypeEOA},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")
	overrides := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{FunctionName: "changeAdmin", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.admin"}}},
			},
		},
	}

	facts := logicsolver.BuildFacts(overrides, snapshot)

	require.Len(t, facts.Permissions, 1)
	require.Equal(t, addr("0xC").String(), facts.Permissions[0].Receiver)
	require.Equal(t, addr("0xE1").String(), facts.Permissions[0].Giver)
	require.Equal(t, "act", facts.Permissions[0].PermissionType)
	require.Equal(t, "changeAdmin", facts.Permissions[0].Role)

	var sawCanAct bool
	for _, f := range facts.CanActIndependently {
		if f.Address == addr("0xE1").Normalized() {
			sawCanAct = true
		}
	}
	require.True(t, sawCanAct)
}

func TestBuildFactsSkipsNonPermissionedFunctions(t *testing.T) {
	t.Parallel()
	snapshot := permission.NewDiscoveredSnapshot(nil, "h")
	overrides := permission.OverridesDocument{
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{FunctionName: "transfer", Classification: permission.ClassificationNonPermissioned},
			},
		},
	}

	facts := logicsolver.BuildFacts(overrides, snapshot)
	require.Empty(t, facts.Permissions)
}
