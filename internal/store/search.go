package store

import (
	"fmt"
	"strings"
)

// SearchRow is one FTS hit joined with its registry row. Rank follows
// SQLite bm25 semantics: smaller is better.
type SearchRow struct {
	BlockID   string
	DocID     string
	Content   string
	Title     string
	HPath     string
	UpdatedAt string
	Rank      float64
}

// Search runs an FTS MATCH over indexed blocks, best-ranked first.
// Soft-deleted docs never appear in results.
func (db *DB) Search(query string, limit int) ([]SearchRow, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := db.conn.Query(`
		SELECT f.block_id, f.doc_id, f.content, d.title, d.hpath, d.updated_at, f.rank
		FROM block_fts f
		JOIN doc_registry d ON d.doc_id = f.doc_id
		WHERE block_fts MATCH ? AND d.deleted = 0
		ORDER BY f.rank
		LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var results []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.BlockID, &r.DocID, &r.Content, &r.Title, &r.HPath, &r.UpdatedAt, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// escapeLike escapes LIKE wildcards so user text matches literally
// under ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
