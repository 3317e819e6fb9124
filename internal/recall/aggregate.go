package recall

import (
	"math"
	"sort"
	"strings"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/intent"
)

const dedupPrefixChars = 800

// aggregateDocs groups scored blocks into documents, filters them by
// keyword coverage, narrows by topic and anchor keywords, and caps the
// result at maxDocs.
func aggregateDocs(blocks []Block, analysis intent.Analysis, topicKeywords []string, maxDocs int) []Doc {
	if len(blocks) == 0 {
		return nil
	}
	docs := groupBlocks(blocks, analysis.Intent.Keywords)

	docs = filterByCoverage(docs, analysis.Intent.Keywords)
	docs = narrowByTopic(docs, analysis.Query, topicKeywords)
	docs = narrowByAnchor(docs, analysis.Intent.Keywords, topicKeywords)

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
	if maxDocs > 0 && len(docs) > maxDocs {
		docs = docs[:maxDocs]
	}
	return docs
}

// groupBlocks builds one Doc per rootId. Blocks arrive score-sorted, so
// within a group the first block holding a content prefix wins.
func groupBlocks(blocks []Block, keywords []string) []Doc {
	order := make([]string, 0, 8)
	groups := make(map[string]*Doc, 8)
	prefixes := make(map[string]map[string]bool, 8)

	for _, b := range blocks {
		id := b.DocID
		doc, ok := groups[id]
		if !ok {
			doc = &Doc{
				DocID:   id,
				Title:   b.Title,
				HPath:   b.HPath,
				Updated: b.Updated,
				Source:  "search",
			}
			groups[id] = doc
			prefixes[id] = make(map[string]bool, 4)
			order = append(order, id)
		}
		key := contentPrefix(b.Content)
		if key != "" && prefixes[id][key] {
			continue
		}
		prefixes[id][key] = true
		doc.Blocks = append(doc.Blocks, b)
		if doc.Title == "" {
			doc.Title = b.Title
		}
		if doc.HPath == "" {
			doc.HPath = b.HPath
		}
		if doc.Updated == "" {
			doc.Updated = b.Updated
		}
	}

	docs := make([]Doc, 0, len(order))
	for _, id := range order {
		doc := groups[id]
		doc.Score = docScore(*doc, keywords)
		doc.Coverage = coverage(*doc, keywords)
		docs = append(docs, *doc)
	}
	return docs
}

// contentPrefix normalizes block content down to a dedup key.
func contentPrefix(content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))
	runes := []rune(norm)
	if len(runes) > dedupPrefixChars {
		return string(runes[:dedupPrefixChars])
	}
	return norm
}

// docScore squashes the mean of the top-5 block scores into (0,1) and
// adds a small boost per keyword found in the path.
func docScore(doc Doc, keywords []string) float64 {
	n := len(doc.Blocks)
	if n > 5 {
		n = 5
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range doc.Blocks[:n] {
		sum += b.Score
	}
	score := 1 - math.Exp(-(sum / float64(n)))

	hpath := strings.ToLower(doc.HPath)
	for _, k := range keywords {
		if strings.Contains(hpath, strings.ToLower(k)) {
			score += 0.1
		}
	}
	return score
}

// coverage scans the path and block contents for intent keywords.
func coverage(doc Doc, keywords []string) Coverage {
	var matched []string
	hpath := strings.ToLower(doc.HPath)
	title := strings.ToLower(doc.Title)
	for _, k := range keywords {
		lk := strings.ToLower(k)
		hit := strings.Contains(hpath, lk) || strings.Contains(title, lk)
		if !hit {
			for _, b := range doc.Blocks {
				if strings.Contains(strings.ToLower(b.Content), lk) {
					hit = true
					break
				}
			}
		}
		if hit {
			matched = append(matched, k)
		}
	}
	return Coverage{MatchedCount: len(matched), MatchedKeywords: matched}
}

// filterByCoverage drops weakly matching docs. CJK-dominated intents
// must match two keywords, others one. An empty outcome falls back to
// the unfiltered set.
func filterByCoverage(docs []Doc, keywords []string) []Doc {
	if len(keywords) == 0 {
		return docs
	}
	need := 1
	if intent.CountCJK(keywords) >= 2 && len(keywords) <= 4 {
		need = 2
	}
	if need > len(keywords) {
		need = len(keywords)
	}
	kept := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if d.Coverage.MatchedCount >= need {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return docs
	}
	return kept
}

// narrowByTopic keeps docs whose hpath, title or top-line heading names
// a topic keyword present in the query, unless that empties the set.
func narrowByTopic(docs []Doc, query string, topicKeywords []string) []Doc {
	topics := activeTopics(query, topicKeywords)
	if len(topics) == 0 {
		return docs
	}
	kept := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if docMentionsTopic(d, topics) {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return docs
	}
	return kept
}

func activeTopics(query string, topicKeywords []string) []string {
	lq := strings.ToLower(query)
	var topics []string
	for _, t := range topicKeywords {
		t = strings.TrimSpace(t)
		if t != "" && strings.Contains(lq, strings.ToLower(t)) {
			topics = append(topics, strings.ToLower(t))
		}
	}
	return topics
}

func docMentionsTopic(d Doc, topics []string) bool {
	hpath := strings.ToLower(d.HPath)
	title := strings.ToLower(d.Title)
	for _, t := range topics {
		if strings.Contains(hpath, t) || strings.Contains(title, t) {
			return true
		}
		for _, b := range d.Blocks {
			if headingLine(b.Content, t) {
				return true
			}
		}
	}
	return false
}

// headingLine reports whether the block opens with a markdown heading
// containing the topic.
func headingLine(content, topic string) bool {
	first := content
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(strings.ToLower(first))
	return strings.HasPrefix(first, "#") && strings.Contains(first, topic)
}

// narrowByAnchor keeps docs covering at least one anchor keyword, the
// longest non-topic terms of the intent, unless that empties the set.
func narrowByAnchor(docs []Doc, keywords, topicKeywords []string) []Doc {
	anchors := anchorKeywords(keywords, topicKeywords)
	if len(anchors) == 0 {
		return docs
	}
	kept := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if coversAnchor(d, anchors) {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return docs
	}
	return kept
}

// anchorKeywords picks up to the 2 longest keywords that are not topic
// terms. Keywords arrive pre-sorted longest first.
func anchorKeywords(keywords, topicKeywords []string) []string {
	topics := make(map[string]bool, len(topicKeywords))
	for _, t := range topicKeywords {
		topics[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var anchors []string
	for _, k := range keywords {
		if topics[strings.ToLower(k)] {
			continue
		}
		anchors = append(anchors, strings.ToLower(k))
		if len(anchors) == 2 {
			break
		}
	}
	return anchors
}

func coversAnchor(d Doc, anchors []string) bool {
	for _, m := range d.Coverage.MatchedKeywords {
		lm := strings.ToLower(m)
		for _, a := range anchors {
			if lm == a {
				return true
			}
		}
	}
	return false
}
