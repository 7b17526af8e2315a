// Package overridesstore implements permission.OverridesStore against a
// single JSON file on disk, following the curator's read/write access
// pattern described in spec.md §1.
package overridesstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// Store is a file-backed permission.OverridesStore.
type Store struct {
	path string
	log  zerolog.Logger
}

// New builds a Store reading and writing the overrides document at path.
func New(path string) *Store {
	return &Store{
		path: path,
		log:  logger.With().Str("component", "overridesstore").Str("path", path).Logger(),
	}
}

// Load reads and parses the overrides document. A missing file is a
// structural error (spec §7).
func (s *Store) Load(_ context.Context) (permission.OverridesDocument, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return permission.OverridesDocument{}, &permission.ErrMissingOverridesFile{Path: s.path}
	}
	if err != nil {
		return permission.OverridesDocument{}, errors.Errorf("reading overrides file: %s", err)
	}

	doc, err := permission.UnmarshalOverridesDocument(data)
	if err != nil {
		return permission.OverridesDocument{}, &permission.ErrMalformedJSON{Path: s.path, InternalError: err}
	}

	s.log.Debug().Int("contracts", len(doc.Contracts)).Msg("loaded overrides document")
	return doc, nil
}

// Save writes the overrides document to disk atomically: it is written
// to a temporary file in the same directory and renamed into place, so
// a crash mid-write never leaves a partially-written document (spec §5,
// mirroring pkg/resolvedstore's whole-file write contract).
func (s *Store) Save(_ context.Context, doc permission.OverridesDocument) error {
	data, err := permission.MarshalOverridesDocument(doc)
	if err != nil {
		return errors.Errorf("marshaling overrides document: %s", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".overrides-*.json.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %s", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Errorf("writing temp file: %s", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf("closing temp file: %s", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Errorf("renaming temp file into place: %s", err)
	}

	s.log.Info().Int("contracts", len(doc.Contracts)).Msg("saved overrides document")
	return nil
}
