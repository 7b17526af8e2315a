package logicsolver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/pkg/logicsolver"
)

func TestClientResolveMapsSolverResponse(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Correlation-Id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ultimatePermissions": []map[string]interface{}{
				{
					"receiver":   addr("0xC").String(),
					"type":       "admin",
					"giver":      addr("0xE1").String(),
					"role":       "changeAdmin",
					"totalDelay": 0,
					"viaList":    []interface{}{},
				},
			},
		})
	}))
	defer server.Close()

	client, err := logicsolver.NewClient(server.URL, 100)
	require.NoError(t, err)

	overrides := permission.OverridesDocument{
		Version: "v1",
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{FunctionName: "changeAdmin", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.admin"}}},
			},
		},
	}
	snapshot := permission.NewDiscoveredSnapshot(nil, "h")

	resolved, err := client.Resolve(context.Background(), overrides, snapshot)
	require.NoError(t, err)
	require.Equal(t, "v1", resolved.Version)
	require.Len(t, resolved.Contracts, 1)
	require.Equal(t, addr("0xC").Normalized(), resolved.Contracts[0].Address)
	require.Len(t, resolved.Contracts[0].Functions, 1)

	fn := resolved.Contracts[0].Functions[0]
	require.Equal(t, "changeAdmin", fn.FunctionName)
	require.Len(t, fn.UltimateOwners, 1)
	require.Equal(t, addr("0xE1").String(), fn.UltimateOwners[0].Address.String())
}

func TestClientResolveMapsAddressTypeAndDelays(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ultimatePermissions": []map[string]interface{}{
				{
					"receiver":   addr("0xC").String(),
					"type":       "admin",
					"giver":      addr("0xMS").String(),
					"role":       "changeAdmin",
					"totalDelay": 172800,
					"viaList": []map[string]interface{}{
						{"address": addr("0xTL").String(), "addressType": "timelock", "delay": 172800},
						{"address": addr("0xC").String(), "addressType": "contract", "delay": 0},
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := logicsolver.NewClient(server.URL, 100)
	require.NoError(t, err)

	overrides := permission.OverridesDocument{
		Version: "v1",
		Contracts: map[string][]permission.FunctionOverride{
			addr("0xC").Normalized(): {
				{FunctionName: "changeAdmin", Classification: permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.admin"}}},
			},
		},
	}
	entries := []permission.DiscoveredEntry{
		{Address: addr("0xMS"), Type: permission.AddressTypeMultisig},
	}
	snapshot := permission.NewDiscoveredSnapshot(entries, "h")

	resolved, err := client.Resolve(context.Background(), overrides, snapshot)
	require.NoError(t, err)
	require.Len(t, resolved.Contracts, 1)
	require.Len(t, resolved.Contracts[0].Functions, 1)

	owners := resolved.Contracts[0].Functions[0].UltimateOwners
	require.Len(t, owners, 1)
	require.Equal(t, addr("0xMS").String(), owners[0].Address.String())
	require.Equal(t, permission.AddressTypeMultisig, owners[0].AddressType)
	require.Equal(t, []uint64{172800}, owners[0].Delays)
	require.Equal(t, uint64(172800), owners[0].CumulativeDelay)

	var sum uint64
	for _, d := range owners[0].Delays {
		sum += d
	}
	require.Equal(t, owners[0].CumulativeDelay, sum)
}

func TestClientResolveRejectsNonOKStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("solver exploded"))
	}))
	defer server.Close()

	client, err := logicsolver.NewClient(server.URL, 100)
	require.NoError(t, err)

	overrides := permission.OverridesDocument{Contracts: map[string][]permission.FunctionOverride{}}
	snapshot := permission.NewDiscoveredSnapshot(nil, "h")

	_, err = client.Resolve(context.Background(), overrides, snapshot)
	require.Error(t, err)
}

func TestClientResolveRateLimitsBurst(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ultimatePermissions": []interface{}{}})
	}))
	defer server.Close()

	client, err := logicsolver.NewClient(server.URL, 1)
	require.NoError(t, err)

	overrides := permission.OverridesDocument{Contracts: map[string][]permission.FunctionOverride{}}
	snapshot := permission.NewDiscoveredSnapshot(nil, "h")

	_, err = client.Resolve(context.Background(), overrides, snapshot)
	require.NoError(t, err)

	_, err = client.Resolve(context.Background(), overrides, snapshot)
	require.Error(t, err)
}
