// Package recall turns prompts into note context: it gates, searches
// the local index and the remote store in parallel, reranks, and
// renders the winning documents into a prependable context block.
package recall

import "github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/intent"

// Block sources.
const (
	SourceFTS       = "fts"
	SourceFulltext  = "fulltext"
	SourceSQL       = "sql"
	SourceLinkedDoc = "linked_doc"
)

// Block is one retrieval candidate in the shape every search path
// normalizes into.
type Block struct {
	ID      string  `json:"id"`
	DocID   string  `json:"docId"`
	Content string  `json:"content"`
	Title   string  `json:"title,omitempty"`
	HPath   string  `json:"hpath,omitempty"`
	Updated string  `json:"updated,omitempty"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`

	ftsRank float64
	hasRank bool
}

// Coverage reports which intent keywords a document actually matched.
type Coverage struct {
	MatchedCount    int      `json:"matchedCount"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
}

// Doc is an aggregated recall result: either a scored search document
// carrying its best blocks, or a linked document carrying full
// markdown.
type Doc struct {
	DocID    string   `json:"docId"`
	Title    string   `json:"title,omitempty"`
	HPath    string   `json:"hpath"`
	Updated  string   `json:"updated,omitempty"`
	Score    float64  `json:"score"`
	Source   string   `json:"source"`
	Markdown string   `json:"markdown,omitempty"`
	Blocks   []Block  `json:"blocks,omitempty"`
	Coverage Coverage `json:"coverage"`
}

// Result is the outcome of one recall call. Handlers translate it into
// the gateway response; it never carries an error that could fail the
// hook.
type Result struct {
	Skipped bool            `json:"skipped"`
	Reason  string          `json:"reason"`
	Intent  intent.Intent   `json:"intent"`
	Query   string          `json:"query,omitempty"`
	Docs    []Doc           `json:"docs,omitempty"`
	Context string          `json:"context,omitempty"`
	Err     string          `json:"error,omitempty"`
}
