package overridesstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/pkg/overridesstore"
)

func TestLoadMissingFileReturnsStructuralError(t *testing.T) {
	t.Parallel()
	s := overridesstore.New(filepath.Join(t.TempDir(), "nope.json"))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	var target *permission.ErrMissingOverridesFile
	require.ErrorAs(t, err, &target)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "overrides.json")
	s := overridesstore.New(path)

	doc := permission.OverridesDocument{
		Version: "1",
		Contracts: map[string][]permission.FunctionOverride{
			"eth:0xc": {
				{
					FunctionName:     "changeAdmin",
					Classification:   permission.ClassificationPermissioned,
					OwnerDefinitions: []permission.OwnerDefinition{{Path: "$self.admin"}},
				},
			},
		},
	}

	require.NoError(t, s.Save(context.Background(), doc))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, doc.Version, loaded.Version)
	require.Len(t, loaded.Contracts["eth:0xc"], 1)
	require.Equal(t, "changeAdmin", loaded.Contracts["eth:0xc"][0].FunctionName)
	require.Equal(t, "$self.admin", loaded.Contracts["eth:0xc"][0].OwnerDefinitions[0].Path)
}

func TestLoadMalformedJSONErrors(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	s := overridesstore.New(path)

	_, err := s.Load(context.Background())
	require.Error(t, err)
	var target *permission.ErrMalformedJSON
	require.ErrorAs(t, err, &target)
}
