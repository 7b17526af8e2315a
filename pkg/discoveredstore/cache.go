// Package discoveredstore implements permission.DiscoveredStore against
// a JSON file produced by the (external, out of scope) discovery
// pipeline, backed by a SQLite modification-time memoization cache
// (spec §5's caching invariant; SPEC_FULL.md §10.3).
package discoveredstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/pkg/discoveredstore/migrations"
)

// Store loads a discovered document from a source file path, memoizing
// the parsed snapshot in a SQLite cache keyed by the file's
// modification time (mirrors pkg/database.Open's sqlite+otelsql+
// migrate stack, generalized here to a caching role).
type Store struct {
	sourcePath string
	db         *sql.DB
	log        zerolog.Logger
}

// Open opens (creating if absent) the SQLite cache at cachePath and
// returns a Store that reads its discovered document from sourcePath.
func Open(cachePath, sourcePath string, attributes ...attribute.KeyValue) (*Store, error) {
	log := logger.With().Str("component", "discoveredstore").Logger()

	db, err := otelsql.Open("sqlite3", cachePath, otelsql.WithAttributes(attributes...))
	if err != nil {
		return nil, errors.Errorf("opening cache db: %s", err)
	}
	if err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attributes...)); err != nil {
		return nil, errors.Errorf("registering dbstats: %s", err)
	}

	if err := migrateUp(db, cachePath, log); err != nil {
		return nil, errors.Errorf("migrating cache db: %s", err)
	}

	return &Store{sourcePath: sourcePath, db: db, log: log}, nil
}

func migrateUp(db *sql.DB, dbPath string, log zerolog.Logger) error {
	src, err := iofs.New(migrations.FS, "files")
	if err != nil {
		return fmt.Errorf("creating iofs source: %s", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite3 migration driver: %s", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbPath, driver)
	if err != nil {
		return fmt.Errorf("creating migration: %s", err)
	}
	defer func() {
		if _, err := m.Close(); err != nil {
			log.Error().Err(err).Msg("closing cache db migration")
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migration up: %s", err)
	}
	return nil
}

// Close closes the underlying cache database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the current DiscoveredSnapshot, recomputing it from
// sourcePath only if the file's modification time differs from the
// cached one (spec §5, SPEC_FULL.md §10.3).
func (s *Store) Load(ctx context.Context) (permission.DiscoveredSnapshot, error) {
	info, err := os.Stat(s.sourcePath)
	if os.IsNotExist(err) {
		return permission.DiscoveredSnapshot{}, &permission.ErrMissingDiscoveredFile{Path: s.sourcePath}
	}
	if err != nil {
		return permission.DiscoveredSnapshot{}, errors.Errorf("statting source file: %s", err)
	}
	modTime := info.ModTime().UnixNano()

	cached, hit, err := s.lookupCache(ctx, modTime)
	if err != nil {
		return permission.DiscoveredSnapshot{}, err
	}
	if hit {
		s.log.Debug().Str("path", s.sourcePath).Msg("discovered snapshot cache hit")
		return cached, nil
	}

	s.log.Debug().Str("path", s.sourcePath).Msg("discovered snapshot cache miss")
	return s.reload(ctx, modTime)
}

func (s *Store) lookupCache(ctx context.Context, modTime int64) (permission.DiscoveredSnapshot, bool, error) {
	var cachedModTime int64
	var hash string
	var blob []byte
	row := s.db.QueryRowContext(
		ctx,
		`SELECT mod_time, content_hash, snapshot_json FROM snapshot_cache WHERE file_path = ?`,
		s.sourcePath,
	)
	if err := row.Scan(&cachedModTime, &hash, &blob); err != nil {
		if err == sql.ErrNoRows {
			return permission.DiscoveredSnapshot{}, false, nil
		}
		return permission.DiscoveredSnapshot{}, false, errors.Errorf("querying snapshot cache: %s", err)
	}
	if cachedModTime != modTime {
		return permission.DiscoveredSnapshot{}, false, nil
	}

	entries, err := permission.UnmarshalDiscoveredEntries(blob)
	if err != nil {
		return permission.DiscoveredSnapshot{}, false, &permission.ErrMalformedJSON{Path: s.sourcePath, InternalError: err}
	}
	return permission.NewDiscoveredSnapshot(entries, hash), true, nil
}

func (s *Store) reload(ctx context.Context, modTime int64) (permission.DiscoveredSnapshot, error) {
	data, err := os.ReadFile(s.sourcePath)
	if err != nil {
		return permission.DiscoveredSnapshot{}, errors.Errorf("reading source file: %s", err)
	}

	entries, err := permission.UnmarshalDiscoveredEntries(data)
	if err != nil {
		return permission.DiscoveredSnapshot{}, &permission.ErrMalformedJSON{Path: s.sourcePath, InternalError: err}
	}

	sum := sha256.Sum256(data)
	hash := fmt.Sprintf("%x", sum)[:16]
	snapshot := permission.NewDiscoveredSnapshot(entries, hash)

	normalized, err := permission.MarshalDiscoveredSnapshot(snapshot)
	if err != nil {
		return permission.DiscoveredSnapshot{}, errors.Errorf("marshaling snapshot for cache: %s", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO snapshot_cache (file_path, mod_time, content_hash, snapshot_json)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET mod_time = excluded.mod_time,
		   content_hash = excluded.content_hash, snapshot_json = excluded.snapshot_json`,
		s.sourcePath, modTime, hash, normalized,
	); err != nil {
		return permission.DiscoveredSnapshot{}, errors.Errorf("upserting snapshot cache: %s", err)
	}

	return snapshot, nil
}
