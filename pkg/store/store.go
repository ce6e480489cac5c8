// Package store implements the embedded relational persistence layer for
// the control plane: workflows, runs, approvals, artifacts, connectors,
// secrets and model presets, backed by sqlite.
//
// Writes go through Tx, which serializes on a process-wide lock; the
// engine's correctness depends on read-modify-write atomicity of a run row.
// Reads are permitted outside transactions for gets and lists.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dara-labs/control-plane/pkg/contracts"

	_ "modernc.org/sqlite"
)

// DBFilename is the database file created under the data directory.
const DBFilename = "dara_control_plane.db"

// Store is the sqlite-backed persistence layer.
type Store struct {
	db *sql.DB
	mu sync.Mutex // single writer
}

// Tx is a unit of work. All mutating operations live here.
type Tx struct {
	tx *sql.Tx
}

// Open creates the data directory if needed, opens (or creates) the
// database file and applies the additive schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", contracts.ErrStore, err)
	}
	dbPath := filepath.Join(dataDir, DBFilename)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", contracts.ErrStore, err)
	}
	return New(db)
}

// New wraps an existing database handle and applies the schema. Tests use
// this with an in-memory database.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for test fixtures that need to corrupt rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies the schema. It is additive and idempotent; existing
// tables are never altered.
func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			schema TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step INTEGER NOT NULL,
			input TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			payload_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			decided_by TEXT,
			decided_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			path TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS connectors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_presets (
			name TEXT PRIMARY KEY,
			model TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_preset_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			active_preset TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", contracts.ErrStore, err)
		}
	}
	return nil
}

// Tx runs fn inside a transaction: commit on nil return, rollback on error.
// Nested calls are not supported; the writer lock is held for the duration.
func (s *Store) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", contracts.ErrStore, err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", contracts.ErrStore, err)
	}
	return nil
}
