package recall

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
)

// Source base weights. The local index is trusted most; the raw SQL
// path least, it matches on bare substrings.
var sourceWeights = map[string]float64{
	SourceFTS:       1.0,
	SourceFulltext:  0.9,
	SourceSQL:       0.75,
	SourceLinkedDoc: 1.0,
}

// scoreBlock computes the stage-2 relevance score.
func scoreBlock(b Block, query string, keywords []string, now time.Time) float64 {
	weight, ok := sourceWeights[b.Source]
	if !ok {
		weight = 0.5
	}

	content := strings.ToLower(b.Content)
	hpath := strings.ToLower(b.HPath)
	q := strings.ToLower(strings.TrimSpace(query))

	score := 0.0
	if len([]rune(q)) >= 3 {
		if strings.Contains(content, q) {
			score += 1.2
		}
		if strings.Contains(hpath, q) {
			score += 0.6
		}
	}
	for _, k := range keywords {
		lk := strings.ToLower(k)
		if strings.Contains(content, lk) {
			score += 0.35
		}
		if strings.Contains(hpath, lk) {
			score += 0.15
		}
	}
	if t, ok := parseUpdated(b.Updated); ok {
		days := now.Sub(t).Hours() / 24
		if days < 0 {
			days = 0
		}
		if bonus := 0.3 - days*0.01; bonus > 0 {
			score += bonus
		}
	}
	if b.hasRank {
		if bonus := 0.8 - math.Min(0.8, b.ftsRank); bonus > 0 {
			score += bonus
		}
	}
	return score * weight
}

// dedupeByID keeps the highest-scored copy per block id across paths.
// The result is sorted score-descending with id as tie break, so the
// merge is deterministic regardless of path completion order.
func dedupeByID(blocks []Block) []Block {
	best := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		cur, ok := best[b.ID]
		if !ok || b.Score > cur.Score {
			best[b.ID] = b
		}
	}
	out := make([]Block, 0, len(best))
	for _, b := range best {
		out = append(out, b)
	}
	sortBlocks(out)
	return out
}

func sortBlocks(blocks []Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Score != blocks[j].Score {
			return blocks[i].Score > blocks[j].Score
		}
		return blocks[i].ID < blocks[j].ID
	})
}

// rerank walks the sorted candidates applying the per-doc diversity cap
// until finalBlockLimit blocks are collected.
func rerank(blocks []Block, cfg config.TwoStageConfig) []Block {
	limit := cfg.FinalBlockLimit
	if limit <= 0 {
		limit = 40
	}
	if !cfg.Enabled {
		if len(blocks) > limit {
			return blocks[:limit]
		}
		return blocks
	}

	perDoc := cfg.PerDocBlockCap
	if perDoc <= 0 {
		perDoc = 6
	}
	taken := make(map[string]int)
	out := make([]Block, 0, limit)
	for _, b := range blocks {
		if taken[b.DocID] >= perDoc {
			continue
		}
		taken[b.DocID]++
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out
}
