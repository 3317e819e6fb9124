package recall

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
)

var (
	docIDRe     = regexp.MustCompile(`\d{14}-[a-z0-9]{7}`)
	docIDFullRe = regexp.MustCompile(`^\d{14}-[a-z0-9]{7}$`)
	urlRe       = regexp.MustCompile(`https?://[^\s'"<>\)\]]+`)
)

// ExtractDocIDs pulls note ids out of a prompt. URLs are checked
// against the host allowlist first; bare ids count only when no
// allowlist is configured or an allowed URL is present.
func ExtractDocIDs(prompt string, cfg config.LinkedDocConfig) []string {
	if !cfg.Enabled {
		return nil
	}
	max := cfg.MaxCount
	if max <= 0 {
		max = 3
	}

	var ids []string
	seen := make(map[string]bool, max)
	add := func(id string) {
		if len(ids) < max && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	bareText := prompt
	allowedSeen := false
	for _, raw := range urlRe.FindAllString(prompt, -1) {
		if !hostAllowed(raw, cfg.HostKeywords) {
			bareText = strings.Replace(bareText, raw, " ", 1)
			continue
		}
		allowedSeen = true
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if id := u.Query().Get("id"); docIDFullRe.MatchString(id) {
			add(id)
		}
		for _, seg := range strings.Split(u.Path, "/") {
			if docIDFullRe.MatchString(seg) {
				add(seg)
			}
		}
	}

	if len(cfg.HostKeywords) == 0 || allowedSeen {
		for _, m := range docIDRe.FindAllString(bareText, -1) {
			add(m)
		}
	}
	return ids
}

// hostAllowed applies the substring allowlist to the whole href.
func hostAllowed(raw string, hostKeywords []string) bool {
	if len(hostKeywords) == 0 {
		return true
	}
	lower := strings.ToLower(raw)
	for _, kw := range hostKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// resolveLinked fetches each id concurrently and synthesizes linked
// docs. A failed fetch drops that id; the rest still render.
func (e *Engine) resolveLinked(ctx context.Context, ids []string) []Doc {
	slots := make([]*Doc, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			doc, err := e.fetchLinked(gCtx, id)
			if err != nil {
				e.log.Debug().Err(err).Str("id", id).Msg("linked doc fetch failed")
				return nil
			}
			slots[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	docs := make([]Doc, 0, len(ids))
	for _, d := range slots {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	return docs
}

func (e *Engine) fetchLinked(ctx context.Context, id string) (*Doc, error) {
	kram, err := e.client.GetBlockKramdown(ctx, id)
	if err != nil {
		return nil, err
	}
	markdown := strings.TrimSpace(siyuan.StripKramdownAttrs(kram.Kramdown))

	doc := &Doc{
		DocID:    id,
		HPath:    "[linked:" + id + "]",
		Score:    1,
		Source:   SourceLinkedDoc,
		Markdown: markdown,
		Blocks: []Block{{
			ID:      id,
			DocID:   id,
			Content: markdown,
			Source:  SourceLinkedDoc,
			Score:   1,
		}},
	}

	// Display metadata is best effort.
	if info, err := e.client.GetBlockInfo(ctx, id); err == nil {
		if info.HPath != "" {
			doc.HPath = info.HPath
		}
		doc.Title = info.RootTitle
		doc.Updated = info.Updated
	}
	return doc, nil
}

// mergeLinked prepends linked docs to the search results, deduping by
// doc id.
func mergeLinked(linked, search []Doc) []Doc {
	if len(linked) == 0 {
		return search
	}
	out := make([]Doc, 0, len(linked)+len(search))
	seen := make(map[string]bool, len(linked))
	for _, d := range linked {
		seen[d.DocID] = true
		out = append(out, d)
	}
	for _, d := range search {
		if !seen[d.DocID] {
			out = append(out, d)
		}
	}
	return out
}
