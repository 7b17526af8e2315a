package resolvedstore_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/pkg/resolvedstore"
)

func sampleDoc(version string, t time.Time) permission.ResolvedDocument {
	return permission.ResolvedDocument{
		Version:      version,
		LastModified: t,
		Contracts: []permission.ResolvedContract{
			{Address: "eth:0xc", Functions: []permission.ResolvedFunction{
				{FunctionName: "changeAdmin"},
			}},
		},
	}
}

func TestSaveWritesWholeDocument(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "resolved.json")
	s := resolvedstore.New(path)

	require.NoError(t, s.Save(context.Background(), sampleDoc("1", time.Unix(1, 0).UTC())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "changeAdmin")
}

func TestSaveArchivesPreviousVersion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "resolved.json")
	s := resolvedstore.New(path)

	first := sampleDoc("1", time.Unix(1, 0).UTC())
	require.NoError(t, s.Save(context.Background(), first))

	second := sampleDoc("2", time.Unix(2, 0).UTC())
	require.NoError(t, s.Save(context.Background(), second))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var archivePath string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".zst" {
			archivePath = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, archivePath, "expected an archived .zst file of the first version")

	archived, err := os.Open(archivePath)
	require.NoError(t, err)
	defer archived.Close()

	r, err := zstd.NewReader(archived)
	require.NoError(t, err)
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(decompressed), `"version": "1"`)

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(live), `"version": "2"`)
}
