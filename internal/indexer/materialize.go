package indexer

import (
	"strings"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// docMeta holds frontmatter fields carried by notes imported from
// markdown vaults. Native note-store docs have none.
type docMeta struct {
	Tags []string `yaml:"tags" toml:"tags" json:"tags"`
}

// parseFrontmatter splits optional frontmatter off the markdown body.
// Parse failures fall back to treating everything as body.
func parseFrontmatter(content string) (string, []string) {
	var meta docMeta
	body, err := frontmatter.Parse(strings.NewReader(content), &meta)
	if err != nil {
		return content, nil
	}
	return string(body), meta.Tags
}

// normalizeUpdated converts a 14-digit note-store timestamp (local time)
// to ISO-8601 UTC. Values already containing date separators pass through.
func normalizeUpdated(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "-T:") {
		return s
	}
	t, err := time.ParseInLocation("20060102150405", s, time.Local)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// siyuanTimeFromISO converts an ISO-8601 timestamp to the note store's
// 14-digit local-time form used in SQL comparisons.
func siyuanTimeFromISO(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.Local().Format("20060102150405")
}

// buildDocument materializes one fetched doc into its indexable form:
// attribute-free markdown, deduped doc-level content, and section rows.
func (s *Service) buildDocument(row docRow, kramdown string) store.Document {
	body, tags := parseFrontmatter(siyuan.StripKramdownAttrs(kramdown))

	content := dedupLines(body, s.cfg.DocContentDedupWindowSize, s.cfg.DocContentDedupLines)

	secs := splitSections(row.id, body, s.cfg.SectionHeadingLevels, s.cfg.SectionMaxChars, s.cfg.MaxSectionsToIndex)
	for i := range secs {
		secs[i].Content = dedupLines(secs[i].Content, s.cfg.SectionDedupWindowSize, s.cfg.SectionDedupLines)
	}

	return store.Document{
		ID:           row.id,
		Title:        row.title,
		HPath:        row.hpath,
		NotebookID:   row.box,
		NotebookName: s.notebooks.nameFor(row.box),
		UpdatedAt:    normalizeUpdated(row.updated),
		Tags:         tags,
		Content:      content,
		Sections:     secs,
	}
}
