// Package store implements C3: the embedded-SQLite persistence engine
// behind one .hmem file — schema, migrations, integrity check,
// transactions, and the write/update/append/delete/stats/export/import
// operations.
//
// Grounded on the teacher's internal/storage/sqlite package: driver
// registration via the blank import of github.com/ncruces/go-sqlite3/driver
// (see cmd/bd/repair.go, cmd/bd/migrate.go), and the WAL + busy-timeout
// connection string built in cmd/bd/repair.go's openRepairDB.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hmemdev/hmem/internal/config"
	"github.com/hmemdev/hmem/internal/hmemerr"
)

// busyTimeout is the hard-coded 5-second busy timeout spec.md §5 requires:
// concurrent writers to the same file wait rather than fail on transient
// contention.
const busyTimeout = 5 * time.Second

// Store owns one embedded SQLite database file and its schema. A handle
// is scoped to one tool call (spec.md §5's ownership rule); the session
// cache that spans multiple calls lives above this layer.
type Store struct {
	db        *sql.DB
	path      string
	cfg       *config.Config
	mu        sync.RWMutex
	corrupted bool
}

// Open opens (creating if necessary) the database file at path, runs
// migrations, and performs an integrity check. On integrity failure the
// file is copied to a ".corrupt" sibling and the Store is returned with
// corrupted=true: every subsequent write refuses with DbCorrupted, while
// reads continue best-effort (spec.md §7).
func Open(path string, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("hmem: creating store directory: %w", err)
		}
	}

	connStr := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		path, busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("hmem: opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, cfg: cfg}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hmem: applying schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hmem: running migrations: %w", err)
	}

	if err := ensureHeaders(db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hmem: seeding headers: %w", err)
	}

	if err := resetObsoleteAccessOnce(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hmem: obsolete access-reset migration: %w", err)
	}

	if ok, err := integrityCheck(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hmem: integrity check: %w", err)
	} else if !ok {
		s.corrupted = true
		slog.Error("store failed integrity check, writes refused", "path", path)
		if backupErr := backupCorrupt(path); backupErr != nil {
			return nil, fmt.Errorf("hmem: backing up corrupted store: %w", backupErr)
		}
	}

	return s, nil
}

// Close triggers a PASSIVE checkpoint (bounding the WAL file) and closes
// the underlying connection.
func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		slog.Warn("checkpoint on close failed", "path", s.path, "error", err)
	}
	return s.db.Close()
}

// Corrupted reports whether the last integrity check failed.
func (s *Store) Corrupted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corrupted
}

// Config returns the resolved configuration this store was opened with.
func (s *Store) Config() *config.Config { return s.cfg }

// refuseIfCorrupted is called at the top of every write path.
func (s *Store) refuseIfCorrupted() error {
	if s.Corrupted() {
		return hmemerr.New(hmemerr.DBCorrupted, "store %s failed integrity check; writes are refused", s.path)
	}
	return nil
}

// withTx runs fn inside a single transaction opened with the driver's
// default BEGIN (the write lock is taken at the first write, not up
// front), committing on success and rolling back on any error or panic — grounded on the teacher's
// internal/storage.Transaction contract.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, beginErr := s.db.BeginTx(ctx, &sql.TxOptions{})
	if beginErr != nil {
		return fmt.Errorf("hmem: beginning transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

func integrityCheck(db *sql.DB) (bool, error) {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, err
	}
	return result == "ok", nil
}

func backupCorrupt(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path+".corrupt", data, 0o640)
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func parseISO(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000Z", s)
}
