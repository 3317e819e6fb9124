// Package indexer pulls documents out of the note store and writes them
// through the local index.
package indexer

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

const (
	changedIDsLimit = 2000
	fetchAttempts   = 3
)

// Service syncs note-store documents into the local index.
type Service struct {
	client    *siyuan.Client
	db        *store.DB
	cfg       config.IndexConfig
	log       zerolog.Logger
	notebooks *notebookCache
}

// New builds a sync service. The exclusion set is resolved from cfg;
// SetExcludedNames swaps it at runtime.
func New(client *siyuan.Client, db *store.DB, cfg config.IndexConfig, logger zerolog.Logger) *Service {
	return &Service{
		client:    client,
		db:        db,
		cfg:       cfg,
		log:       logger.With().Str("component", "indexer").Logger(),
		notebooks: newNotebookCache(cfg.ExcludedNotebookNames()),
	}
}

// RunStats summarizes one sync run.
type RunStats struct {
	Mode       string `json:"mode"`
	Docs       int    `json:"docs"`
	Indexed    int    `json:"indexed"`
	Deleted    int    `json:"deleted"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}

// docRow is one doc-typed row from the remote blocks table.
type docRow struct {
	id      string
	box     string
	hpath   string
	title   string
	updated string
}

func docRowFromMap(m map[string]any) docRow {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	return docRow{
		id:      str("id"),
		box:     str("box"),
		hpath:   str("hpath"),
		title:   str("content"), // doc blocks carry the title in content
		updated: str("updated"),
	}
}

// NeedsInitialSync reports whether no sync has ever completed.
func (s *Service) NeedsInitialSync() (bool, error) {
	last, err := s.db.GetLastSyncTime()
	if err != nil {
		return false, err
	}
	return last == "", nil
}

// Sync runs an initial sync when none has completed yet (or when full is
// set), otherwise an incremental one.
func (s *Service) Sync(ctx context.Context, full bool) (*RunStats, error) {
	if full {
		return s.InitialSync(ctx)
	}
	needs, err := s.NeedsInitialSync()
	if err != nil {
		return nil, err
	}
	if needs {
		return s.InitialSync(ctx)
	}
	return s.IncrementalSync(ctx)
}

// RefreshNotebooks reloads the notebook cache and exclusion ids.
func (s *Service) RefreshNotebooks(ctx context.Context) error {
	return s.notebooks.refresh(ctx, s.client)
}

// SetExcludedNames swaps the exclusion set at runtime, for both the
// notebook cache and the store.
func (s *Service) SetExcludedNames(names map[string]bool) {
	s.notebooks.setExcludedNames(names)
	list := make([]string, 0, len(names))
	for n := range names {
		list = append(list, n)
	}
	s.db.SetExcludedNames(list)
}

// PurgeNotebooks hard-removes all indexed docs living under the given
// notebook names. Used when a notebook enters the exclusion set.
func (s *Service) PurgeNotebooks(names []string) (int, error) {
	removed := 0
	for _, name := range names {
		ids, err := s.db.DocIDsInNotebookPrefix(name)
		if err != nil {
			return removed, err
		}
		for _, id := range ids {
			if err := s.db.RemoveFromIndex(id); err != nil {
				return removed, err
			}
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("docs", removed).Strs("notebooks", names).Msg("purged newly excluded notebooks")
	}
	return removed, nil
}

// InitialSync walks every open, non-excluded notebook and indexes all of
// its documents. lastSyncTime is written only when the walk succeeds.
func (s *Service) InitialSync(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{Mode: "initial", Timestamp: start.UTC().Format(time.RFC3339)}

	if err := s.RefreshNotebooks(ctx); err != nil {
		return nil, err
	}

	var rows []docRow
	for _, boxID := range s.notebooks.includedIDs() {
		nbRows, err := s.listNotebookDocs(ctx, boxID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, nbRows...)
	}
	stats.Docs = len(rows)

	docs, errs := s.fetchAll(ctx, rows)
	stats.Errors = errs

	written, err := s.db.SyncDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("write batch: %w", err)
	}
	stats.Indexed = written
	stats.Skipped = len(docs) - written

	if err := s.db.UpdateSyncTime(time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	s.log.Info().
		Int("docs", stats.Docs).
		Int("indexed", stats.Indexed).
		Int("errors", stats.Errors).
		Int64("duration_ms", stats.DurationMs).
		Msg("initial sync complete")
	return stats, nil
}

// IncrementalSync indexes docs whose blocks changed since the last sync.
// The new lastSyncTime is sampled before the remote query, so a doc that
// changes mid-run is picked up again on the next run. A run that fails
// leaves lastSyncTime untouched and retries the same window.
func (s *Service) IncrementalSync(ctx context.Context) (*RunStats, error) {
	last, err := s.db.GetLastSyncTime()
	if err != nil {
		return nil, err
	}
	if last == "" {
		return s.InitialSync(ctx)
	}

	start := time.Now()
	sampled := start.UTC().Format(time.RFC3339)
	stats := &RunStats{Mode: "incremental", Timestamp: sampled}

	if err := s.RefreshNotebooks(ctx); err != nil {
		s.log.Warn().Err(err).Msg("notebook refresh failed, using cached set")
	}

	ids, err := s.changedDocIDs(ctx, last)
	if err != nil {
		return nil, err
	}
	stats.Docs = len(ids)

	var rows []docRow
	for _, id := range ids {
		row, found, err := s.fetchDocRow(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("doc_id", id).Msg("doc lookup failed")
			stats.Errors++
			continue
		}
		if !found {
			if err := s.db.MarkDeleted(id); err != nil {
				s.log.Warn().Err(err).Str("doc_id", id).Msg("mark deleted failed")
				stats.Errors++
				continue
			}
			stats.Deleted++
			continue
		}
		if s.notebooks.isExcludedID(row.box) {
			stats.Skipped++
			continue
		}
		rows = append(rows, row)
	}

	docs, errs := s.fetchAll(ctx, rows)
	stats.Errors += errs

	written, err := s.db.SyncDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("write batch: %w", err)
	}
	stats.Indexed = written
	stats.Skipped += len(docs) - written

	if err := s.db.UpdateSyncTime(sampled); err != nil {
		return nil, err
	}

	if s.cfg.CleanupAgeDays > 0 {
		if n, err := s.db.CleanupOldDeleted(s.cfg.CleanupAgeDays); err != nil {
			s.log.Warn().Err(err).Msg("cleanup failed")
		} else if n > 0 {
			s.log.Debug().Int("docs", n).Msg("cleaned up old deletions")
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	s.log.Info().
		Int("changed", stats.Docs).
		Int("indexed", stats.Indexed).
		Int("deleted", stats.Deleted).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Int64("duration_ms", stats.DurationMs).
		Msg("incremental sync complete")
	return stats, nil
}

// listNotebookDocs pages through a notebook's documents, newest first,
// until a short page signals the end.
func (s *Service) listNotebookDocs(ctx context.Context, boxID string) ([]docRow, error) {
	page := s.cfg.SQLPageSize
	if page <= 0 {
		page = 200
	}

	var out []docRow
	for offset := 0; ; offset += page {
		stmt := fmt.Sprintf(
			"SELECT id, box, hpath, content, updated FROM blocks WHERE type='d' AND box='%s' ORDER BY updated DESC LIMIT %d OFFSET %d",
			escapeSQL(boxID), page, offset,
		)
		rows, err := s.client.SQL(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("list docs in %s: %w", boxID, err)
		}
		for _, m := range rows {
			if row := docRowFromMap(m); row.id != "" {
				out = append(out, row)
			}
		}
		if len(rows) < page {
			break
		}
	}
	return out, nil
}

// changedDocIDs returns distinct root ids of blocks updated after the
// given ISO timestamp.
func (s *Service) changedDocIDs(ctx context.Context, sinceISO string) ([]string, error) {
	since := siyuanTimeFromISO(sinceISO)
	if since == "" {
		return nil, fmt.Errorf("unparseable last sync time %q", sinceISO)
	}

	stmt := fmt.Sprintf(
		"SELECT DISTINCT root_id FROM blocks WHERE updated > '%s' LIMIT %d",
		since, changedIDsLimit,
	)
	rows, err := s.client.SQL(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("changed blocks: %w", err)
	}

	var ids []string
	for _, m := range rows {
		if id, ok := m["root_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fetchDocRow looks up one doc block. found=false means the doc no
// longer exists remotely.
func (s *Service) fetchDocRow(ctx context.Context, id string) (docRow, bool, error) {
	stmt := fmt.Sprintf(
		"SELECT id, box, hpath, content, updated FROM blocks WHERE id='%s' AND type='d' LIMIT 1",
		escapeSQL(id),
	)
	rows, err := s.client.SQL(ctx, stmt)
	if err != nil {
		return docRow{}, false, err
	}
	if len(rows) == 0 {
		return docRow{}, false, nil
	}
	return docRowFromMap(rows[0]), true, nil
}

type fetchResult struct {
	doc store.Document
	id  string
	err error
}

// fetchAll materializes docs through a bounded worker pool. One failed
// doc never aborts the batch; failures are logged and counted.
func (s *Service) fetchAll(ctx context.Context, rows []docRow) ([]store.Document, int) {
	if len(rows) == 0 {
		return nil, 0
	}

	workers := s.cfg.MaxConcurrentFetches
	if workers <= 0 {
		workers = 4
	}
	if workers > len(rows) {
		workers = len(rows)
	}

	workCh := make(chan docRow, len(rows))
	resultCh := make(chan fetchResult, len(rows))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range workCh {
				body, err := s.fetchKramdown(ctx, row.id)
				if err != nil {
					resultCh <- fetchResult{id: row.id, err: err}
					continue
				}
				resultCh <- fetchResult{id: row.id, doc: s.buildDocument(row, body)}
			}
		}()
	}

	for _, r := range rows {
		workCh <- r
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var docs []store.Document
	errs := 0
	for res := range resultCh {
		if res.err != nil {
			s.log.Warn().Err(res.err).Str("doc_id", res.id).Msg("doc fetch failed")
			errs++
			continue
		}
		docs = append(docs, res.doc)
	}
	return docs, errs
}

// fetchKramdown fetches a doc's markdown with jittered retry backoff.
func (s *Service) fetchKramdown(ctx context.Context, id string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt)*250*time.Millisecond +
				time.Duration(rand.Intn(100))*time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
		kd, err := s.client.GetBlockKramdown(ctx, id)
		if err == nil {
			return kd.Kramdown, nil
		}
		if siyuan.IsNotFound(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// Stats reports current index counts.
func (s *Service) Stats() (store.Stats, error) {
	return s.db.Stats()
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
