// Package store is Harbor's local persistence layer (spec §5/§6): an
// append-only event log per domain plus the materialized tables derived
// from it, all in a single modernc.org/sqlite database file (pure Go,
// no cgo, matching the teacher's preference for dependency-light
// binaries).
//
// Grounded on the original Rust implementation's repository-per-domain
// shape (original_source/src-tauri/src/repos/*.rs) translated to plain
// Go functions over *sql.DB/*sql.Tx, and on core/wallet.go's pattern of
// one file per concern rather than a generic DAO abstraction.
package store

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/bakobiibizo/harbor/internal/harborlog"
)

// migration is one forward-only schema step, applied in ascending
// Version order and recorded in schema_version so restarts never
// re-apply an already-run step.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{1, "identity_and_contacts", schemaIdentityAndContacts},
	{2, "messages", schemaMessages},
	{3, "posts", schemaPosts},
	{4, "permissions", schemaPermissions},
	{5, "clocks_and_nonces", schemaClocksAndNonces},
	{6, "sync_cursors", schemaSyncCursors},
	{7, "boards", schemaBoards},
	{8, "bootstrap_nodes", schemaBootstrapNodes},
	{9, "relay_server", schemaRelayServer},
}

// Open opens (creating if absent) the sqlite database at path, enables
// WAL + foreign keys, and applies any pending migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway; avoid SQLITE_BUSY churn
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: configure pragmas: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies every migration newer than the database's recorded
// schema_version, in order.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("store: read schema_version: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan schema_version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	ordered := append([]migration(nil), migrations...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	for _, m := range ordered {
		if applied[m.Version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", m.Version, err)
		}
		harborlog.With("store").Infof("applied migration %d: %s", m.Version, m.Name)
	}
	return nil
}
