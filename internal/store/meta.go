package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastSyncKey = "last_sync_time"

// Stats summarizes the state of the local index.
type Stats struct {
	TotalDocs   int64  `json:"totalDocs"`
	TotalBlocks int64  `json:"totalBlocks"`
	DeletedDocs int64  `json:"deletedDocs"`
	SkippedDocs int64  `json:"skippedDocs"`
	LastSync    string `json:"lastSync"`
	DBPath      string `json:"dbPath"`
}

// GetLastSyncTime returns the ISO timestamp of the last completed sync,
// or empty string when no sync has finished yet.
func (db *DB) GetLastSyncTime() (string, error) {
	var value string
	err := db.conn.QueryRow(
		`SELECT value FROM sync_metadata WHERE key = ?`, lastSyncKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last sync: %w", err)
	}
	return value, nil
}

// UpdateSyncTime records the ISO timestamp of a completed sync.
func (db *DB) UpdateSyncTime(iso string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(`
		INSERT INTO sync_metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastSyncKey, iso, now,
	)
	if err != nil {
		return fmt.Errorf("update sync time: %w", err)
	}
	return nil
}

// Stats reports index counts and the last sync timestamp.
func (db *DB) Stats() (Stats, error) {
	s := Stats{DBPath: db.path, SkippedDocs: db.skipped.Load()}

	if err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM doc_registry WHERE deleted = 0`,
	).Scan(&s.TotalDocs); err != nil {
		return s, fmt.Errorf("count docs: %w", err)
	}
	if err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM doc_registry WHERE deleted = 1`,
	).Scan(&s.DeletedDocs); err != nil {
		return s, fmt.Errorf("count deleted: %w", err)
	}
	if err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM block_fts`,
	).Scan(&s.TotalBlocks); err != nil {
		return s, fmt.Errorf("count blocks: %w", err)
	}

	lastSync, err := db.GetLastSyncTime()
	if err != nil {
		return s, err
	}
	s.LastSync = lastSync
	return s, nil
}
