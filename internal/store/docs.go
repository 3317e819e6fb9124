package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document is a note-store document materialized for indexing.
type Document struct {
	ID           string
	Title        string
	HPath        string
	NotebookID   string
	NotebookName string
	UpdatedAt    string // ISO-8601
	Tags         []string
	Content      string // dedup-compressed markdown, the doc-level FTS body
	Sections     []Section
}

// Section is a heading-delimited slice of a document's markdown.
type Section struct {
	ID      string // "<docId>::h<level>::<lineIndex>"
	Content string
}

// Notebook returns the name used for exclusion matching: the explicit
// notebook name when present, otherwise the first hpath segment.
func (d Document) Notebook() string {
	if n := strings.TrimSpace(d.NotebookName); n != "" {
		return n
	}
	for _, seg := range strings.Split(d.HPath, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// IndexDocument upserts one document and rewrites its FTS rows.
// A document in an excluded notebook is skipped and leaves no rows.
func (db *DB) IndexDocument(doc Document) error {
	_, err := db.SyncDocuments([]Document{doc})
	return err
}

// SyncDocuments writes a batch of documents in a single transaction and
// returns the number actually written. Re-indexing a doc always rewrites
// its FTS rows in full; it never appends duplicates.
func (db *DB) SyncDocuments(docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.Prepare(`
		INSERT INTO doc_registry (doc_id, title, hpath, updated_at, indexed_at, deleted, deleted_at, tags)
		VALUES (?, ?, ?, ?, ?, 0, '', ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			title = excluded.title,
			hpath = excluded.hpath,
			updated_at = excluded.updated_at,
			indexed_at = excluded.indexed_at,
			deleted = 0,
			deleted_at = '',
			tags = excluded.tags`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	clearFTS, err := tx.Prepare(`DELETE FROM block_fts WHERE doc_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare clear: %w", err)
	}
	defer clearFTS.Close()

	insertFTS, err := tx.Prepare(`INSERT INTO block_fts (block_id, doc_id, content) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer insertFTS.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	written := 0
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		if name := doc.Notebook(); db.isExcluded(name) {
			db.skipped.Add(1)
			db.log.Debug().Str("doc_id", doc.ID).Str("notebook", name).Msg("excluded notebook, skipping index")
			continue
		}

		tags := "[]"
		if len(doc.Tags) > 0 {
			if raw, jerr := json.Marshal(doc.Tags); jerr == nil {
				tags = string(raw)
			}
		}

		if _, err := upsert.Exec(doc.ID, doc.Title, doc.HPath, doc.UpdatedAt, now, tags); err != nil {
			return 0, fmt.Errorf("upsert doc %s: %w", doc.ID, err)
		}
		if _, err := clearFTS.Exec(doc.ID); err != nil {
			return 0, fmt.Errorf("clear fts %s: %w", doc.ID, err)
		}
		if _, err := insertFTS.Exec(doc.ID, doc.ID, doc.Content); err != nil {
			return 0, fmt.Errorf("insert doc fts %s: %w", doc.ID, err)
		}
		for _, sec := range doc.Sections {
			if _, err := insertFTS.Exec(sec.ID, doc.ID, sec.Content); err != nil {
				return 0, fmt.Errorf("insert section fts %s: %w", sec.ID, err)
			}
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// MarkDeleted soft-deletes a document. Its FTS rows stay in place;
// search filters them out through the registry join.
func (db *DB) MarkDeleted(docID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.Exec(
		`UPDATE doc_registry SET deleted = 1, deleted_at = ? WHERE doc_id = ? AND deleted = 0`,
		now, docID,
	)
	return err
}

// RemoveFromIndex hard-deletes a document from both tables. Used when a
// notebook enters the exclusion set and its docs must leave no traces.
func (db *DB) RemoveFromIndex(docID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM block_fts WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete fts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM doc_registry WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete registry: %w", err)
	}
	return tx.Commit()
}

// DocIDsInNotebookPrefix returns non-deleted doc ids whose hpath starts
// with "/<name>/" or equals "/<name>". Used to purge newly excluded
// notebooks.
func (db *DB) DocIDsInNotebookPrefix(name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	rows, err := db.conn.Query(
		`SELECT doc_id FROM doc_registry WHERE deleted = 0 AND (hpath LIKE ? ESCAPE '\' OR hpath = ?)`,
		"/"+escapeLike(name)+"/%", "/"+name,
	)
	if err != nil {
		return nil, fmt.Errorf("notebook docs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CleanupOldDeleted hard-removes docs soft-deleted more than daysOld days
// ago, registry and FTS rows together. Returns the number of docs removed.
func (db *DB) CleanupOldDeleted(daysOld int) (int, error) {
	if daysOld <= 0 {
		return 0, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld).Format(time.RFC3339)

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM block_fts WHERE doc_id IN (
			SELECT doc_id FROM doc_registry
			WHERE deleted = 1 AND deleted_at != '' AND deleted_at < ?
		)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup fts: %w", err)
	}

	res, err := tx.Exec(
		`DELETE FROM doc_registry WHERE deleted = 1 AND deleted_at != '' AND deleted_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup registry: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}
