package store

import (
	"database/sql"
	"fmt"

	"github.com/hmemdev/hmem/internal/config"
)

// migration is one additive, idempotent schema change, grounded on the
// teacher's internal/storage/sqlite/migrations.go pattern of an ordered
// list of named functions run on every open.
type migration struct {
	name string
	fn   func(*sql.DB) error
}

// migrationsList is the ordered list of all registered migrations. New
// entries are appended, never reordered or removed, so that a file
// migrated under an older binary still converges under a newer one.
var migrationsList = []migration{
	{"add_schema_meta_seed", migrateSeedSchemaMeta},
}

func runMigrations(db *sql.DB) error {
	// PRAGMA foreign_keys must be toggled outside of a transaction
	// (SQLite limitation) — mirrored from the teacher's migrations.go.
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS applied_migrations (name TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return err
	}

	for _, m := range migrationsList {
		var exists int
		if err := db.QueryRow(`SELECT COUNT(*) FROM applied_migrations WHERE name = ?`, m.name).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		if err := m.fn(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if _, err := db.Exec(`INSERT INTO applied_migrations (name, applied_at) VALUES (?, ?)`, m.name, nowISO()); err != nil {
			return err
		}
	}
	return nil
}

func migrateSeedSchemaMeta(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('schema_version', '1')`)
	return err
}

// ensureHeaders inserts one synthetic header entry per configured prefix
// (seq = 0) the first time a store is opened with that prefix registered.
// Headers are excluded from every real query (WHERE sequence > 0) and are
// only surfaced through GetHeaders for the formatter's group titles.
func ensureHeaders(db *sql.DB, cfg *config.Config) error {
	for prefix, label := range cfg.Prefixes {
		desc := cfg.PrefixDescriptions[prefix]
		if desc == "" {
			desc = label
		}
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM root_entries WHERE prefix = ? AND sequence = 0`, prefix).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		id := prefix + "0000"
		if _, err := db.Exec(
			`INSERT INTO root_entries (id, prefix, sequence, created_at, level1, title, min_role) VALUES (?, ?, 0, ?, ?, ?, 'worker')`,
			id, prefix, nowISO(), desc, desc,
		); err != nil {
			return err
		}
	}
	return nil
}

// resetObsoleteAccessOnce is the one-shot migration from spec.md §4.3
// that zeroes access_count on every already-obsolete root entry, guarded
// by a schema_meta marker so it never re-runs.
func resetObsoleteAccessOnce(db *sql.DB) error {
	var done string
	err := db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'obsolete_access_reset_done'`).Scan(&done)
	if err == nil && done == "1" {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if _, err := db.Exec(`UPDATE root_entries SET access_count = 0 WHERE obsolete = 1`); err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO schema_meta (key, value) VALUES ('obsolete_access_reset_done', '1')`)
	return err
}
