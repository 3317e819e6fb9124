package recall

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/intent"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
)

// pathResult carries one path's candidates; a failed path contributes
// zero candidates and its error is only logged.
type pathResult struct {
	path   string
	blocks []Block
	err    error
}

// buildFTSQuery picks the stage-1 match expression. Intents dominated
// by a few CJK keywords intersect phrases; long multi-keyword prompts
// union them; everything else matches the query verbatim.
func buildFTSQuery(query string, keywords []string) string {
	cjk := intent.CountCJK(keywords)
	if cjk >= 2 && len(keywords) <= 4 {
		quoted := make([]string, len(keywords))
		for i, k := range keywords {
			quoted[i] = quoteFTS(k)
		}
		return strings.Join(quoted, " ")
	}
	if utf8.RuneCountInString(query) >= 18 && len(keywords) >= 2 {
		quoted := make([]string, len(keywords))
		for i, k := range keywords {
			quoted[i] = quoteFTS(k)
		}
		return strings.Join(quoted, " OR ")
	}
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = quoteFTS(f)
	}
	return strings.Join(fields, " ")
}

// quoteFTS wraps a term in FTS5 string syntax.
func quoteFTS(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// buildSQLStmt assembles the remote LIKE query. The time window applies
// only on this path.
func buildSQLStmt(keywords []string, query string, tr *intent.TimeRange, limit int) string {
	terms := keywords
	if len(terms) == 0 {
		terms = []string{strings.TrimSpace(query)}
	}
	conds := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf(`content LIKE '%%%s%%' ESCAPE '\'`, escapeSQL(escapeLike(t))))
	}
	if len(conds) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM blocks WHERE (")
	b.WriteString(strings.Join(conds, " OR "))
	b.WriteString(")")
	if tr != nil {
		fmt.Fprintf(&b, " AND updated > '%s'", tr.Since.Local().Format("20060102150405"))
	}
	fmt.Fprintf(&b, " AND type != 'd' AND content IS NOT NULL AND TRIM(content) != '' ORDER BY updated DESC LIMIT %d", limit)
	return b.String()
}

// escapeSQL doubles single quotes for embedding in a statement string.
func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// escapeLike escapes LIKE wildcards so terms match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func (e *Engine) searchLocal(query string, keywords []string, limit int) ([]Block, error) {
	match := buildFTSQuery(query, keywords)
	if strings.TrimSpace(match) == "" {
		return nil, nil
	}
	rows, err := e.db.Search(match, limit)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows))
	for _, r := range rows {
		blocks = append(blocks, Block{
			ID:      r.BlockID,
			DocID:   r.DocID,
			Content: r.Content,
			Title:   r.Title,
			HPath:   r.HPath,
			Updated: r.UpdatedAt,
			Source:  SourceFTS,
			ftsRank: r.Rank,
			hasRank: true,
		})
	}
	return blocks, nil
}

func (e *Engine) searchFulltext(ctx context.Context, query string, limit int) ([]Block, error) {
	hits, err := e.client.SearchFullText(ctx, query, siyuan.FulltextOptions{
		Page:  1,
		Size:  limit,
		Extra: e.cfg.Recall.TwoStage.FulltextOptions,
	})
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(hits))
	for _, h := range hits {
		b := blockFromRemote(h)
		b.Source = SourceFulltext
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (e *Engine) searchSQL(ctx context.Context, keywords []string, query string, tr *intent.TimeRange, limit int) ([]Block, error) {
	stmt := buildSQLStmt(keywords, query, tr, limit)
	if stmt == "" {
		return nil, nil
	}
	rows, err := e.client.SQL(ctx, stmt)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows))
	for _, row := range rows {
		b := blockFromRow(row)
		if b.ID == "" {
			continue
		}
		b.Source = SourceSQL
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func blockFromRemote(h siyuan.Block) Block {
	docID := h.RootID
	if docID == "" {
		docID = h.ID
	}
	return Block{
		ID:      h.ID,
		DocID:   docID,
		Content: stripMarkTags(h.Content),
		HPath:   h.HPath,
		Updated: h.Updated,
	}
}

// blockFromRow coalesces the field spellings seen across endpoints and
// server versions into the common shape.
func blockFromRow(row map[string]any) Block {
	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := row[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	b := Block{
		ID:      str("id"),
		DocID:   str("root_id", "rootID", "rootId", "docID", "docId"),
		Content: stripMarkTags(str("content")),
		Title:   str("name", "title"),
		HPath:   str("hpath", "hPath"),
		Updated: str("updated", "updated_at", "updatedAt"),
	}
	if b.DocID == "" {
		b.DocID = b.ID
	}
	return b
}

// Full-text hits carry highlight markup around matched terms.
func stripMarkTags(s string) string {
	if !strings.Contains(s, "<mark>") {
		return s
	}
	s = strings.ReplaceAll(s, "<mark>", "")
	return strings.ReplaceAll(s, "</mark>", "")
}

// parseUpdated accepts the store's 14-digit local form or ISO-8601.
func parseUpdated(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) == 14 && !strings.ContainsAny(s, "-T:") {
		t, err := time.ParseInLocation("20060102150405", s, time.Local)
		return t, err == nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	return t, err == nil
}
