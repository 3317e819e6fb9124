// Package store provides the SQLite document registry and full-text index.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps a SQLite connection holding the document registry and the
// block-level FTS index.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex // serialize writes
	path string
	log  zerolog.Logger

	excludedMu sync.RWMutex
	excluded   map[string]bool // lowercased notebook names

	skipped atomic.Int64
}

// Open opens or creates the index database at the given path.
// excludedNames seeds the notebook exclusion set; documents in those
// notebooks are never written.
func Open(path string, excludedNames []string, logger zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
		log:  logger.With().Str("component", "store").Logger(),
	}
	db.SetExcludedNames(excludedNames)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory database for testing.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// A second pooled connection would see its own empty :memory: db.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: ":memory:", log: zerolog.Nop()}
	db.SetExcludedNames(nil)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for direct queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the filesystem path of the database.
func (db *DB) Path() string {
	return db.path
}

// SetExcludedNames replaces the cached notebook exclusion set.
// Matching is case-insensitive.
func (db *DB) SetExcludedNames(names []string) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = true
		}
	}
	db.excludedMu.Lock()
	db.excluded = set
	db.excludedMu.Unlock()
}

func (db *DB) isExcluded(name string) bool {
	if name == "" {
		return false
	}
	db.excludedMu.RLock()
	defer db.excludedMu.RUnlock()
	return db.excluded[strings.ToLower(name)]
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS doc_registry (
			doc_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			hpath TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT '',
			indexed_at TEXT NOT NULL DEFAULT '',
			deleted INTEGER NOT NULL DEFAULT 0,
			deleted_at TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_doc_registry_updated ON doc_registry(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_doc_registry_deleted ON doc_registry(deleted, deleted_at)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS block_fts USING fts5(
			block_id UNINDEXED,
			doc_id UNINDEXED,
			content,
			tokenize = 'porter unicode61 remove_diacritics 2'
		)`,

		`CREATE TABLE IF NOT EXISTS sync_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
