// Package resolvedstore implements permission.ResolvedStore: an
// atomic, whole-file writer for the resolved document that archives
// the previous version with zstd before overwriting it (SPEC_FULL.md
// §10.9, generalizing pkg/backup/compressor.go's zstd pipeline to a
// single-file "archive then replace" write path).
package resolvedstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// Store is a file-backed permission.ResolvedStore.
type Store struct {
	path string
	log  zerolog.Logger
}

// New builds a Store writing the resolved document at path.
func New(path string) *Store {
	return &Store{
		path: path,
		log:  logger.With().Str("component", "resolvedstore").Str("path", path).Logger(),
	}
}

// Save archives the previous resolved document (if one exists) as
// "<path>.<unixnano>.zst" and then atomically replaces it with the new
// one: the write to a temp file plus rename means the destination
// always holds a complete document, never a partial one (spec §5).
func (s *Store) Save(ctx context.Context, doc permission.ResolvedDocument) error {
	data, err := permission.MarshalResolvedDocument(doc)
	if err != nil {
		return errors.Errorf("marshaling resolved document: %s", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := s.archivePrevious(ctx, doc); err != nil {
			return errors.Errorf("archiving previous resolved document: %s", err)
		}
	} else if !os.IsNotExist(err) {
		return errors.Errorf("statting existing resolved document: %s", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".resolved-*.json.tmp")
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

	s.log.Info().Int("contracts", len(doc.Contracts)).Msg("saved resolved document")
	return nil
}

// archivePrevious compresses the currently-stored document into
// "<path>.<timestamp>.zst" without disturbing it, so the rename in
// Save is the only moment the live document changes.
func (s *Store) archivePrevious(ctx context.Context, next permission.ResolvedDocument) error {
	archivePath := fmt.Sprintf("%s.%d.zst", s.path, next.LastModified.UnixNano())

	src, err := os.Open(s.path)
	if err != nil {
		return errors.Errorf("opening previous resolved document: %s", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Errorf("creating archive file: %s", err)
	}
	defer dst.Close()

	w, err := zstd.NewWriter(dst)
	if err != nil {
		return errors.Errorf("creating zstd writer: %s", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := w.ReadFrom(src); err != nil {
			return errors.Errorf("compressing previous document: %s", err)
		}
		return w.Close()
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Debug().Str("archive", archivePath).Msg("archived previous resolved document")
	return nil
}
