// Package store persists the catalog of tracked albums and the scan cursor.
//
// The database is only touched at two points: Load at process start and Save
// at the end of a cycle. In between, the in-memory Library is the
// authoritative copy.
package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/franz/music-reconciler/internal/util"
)

const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS tracked_albums (
	item_key TEXT PRIMARY KEY,
	artist_name TEXT NOT NULL,
	album_title TEXT NOT NULL,
	artist_mbid TEXT NOT NULL DEFAULT '',
	release_group_mbid TEXT NOT NULL DEFAULT '',
	discovered_at TIMESTAMP NOT NULL,
	baseline INTEGER NOT NULL DEFAULT 0,
	synced INTEGER,
	last_retry_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scan_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_scan_date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracked_pending ON tracked_albums(synced) WHERE synced = 0;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
`

// Store wraps the SQLite file holding the tracked album catalog
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path.
// A database that cannot be opened or migrated is treated as corrupt: it is
// removed and recreated once, so a damaged file degrades to an empty store
// rather than a startup failure.
func Open(path string) (*Store, error) {
	s, err := open(path)
	if err == nil {
		return s, nil
	}

	util.WarnLog("Store: unreadable database at %s, recreating: %v", path, err)
	removeDatabase(path)

	return open(path)
}

func open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

func removeDatabase(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		os.Remove(p)
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// SQLiteVersion reports the embedded engine version
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}
