package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// testTools registers a plugin against an unreachable note store with a
// seeded local index, so handlers run the degraded local-only path.
func testTools(t *testing.T) *tools {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot bind local test listener: %v", err)
	}
	deadURL := "http://" + ln.Addr().String()
	ln.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf(`[siyuan]
apiUrl = %q
apiToken = "test-token"
requestTimeoutMs = 2000

[index]
enabled = false
dbPath = %q
`, deadURL, filepath.Join(dir, "index.db"))
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIYUAN_API_URL", deadURL)
	t.Setenv("SIYUAN_API_TOKEN", "test-token")

	p, err := plugin.Register(plugin.Options{ConfigPath: cfgPath, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	docs := []store.Document{{
		ID:        "20240101120000-rustdoc",
		Title:     "Rust ownership",
		HPath:     "/tech/Rust ownership",
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Content:   "Rust ownership rules: every value has a single owner.",
	}}
	if _, err := p.Store().SyncDocuments(docs); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return &tools{p: p}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestHandleSearchNotes(t *testing.T) {
	tl := testTools(t)

	res, _, err := tl.handleSearchNotes(context.Background(), nil, searchInput{Query: "rust ownership"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "20240101120000-rustdoc") {
		t.Fatalf("result missing doc id:\n%s", text)
	}

	var blocks []map[string]any
	if err := json.Unmarshal([]byte(text), &blocks); err != nil {
		t.Fatalf("result is not a JSON block list: %v", err)
	}
	if len(blocks) == 0 || blocks[0]["source"] != "fts" {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
}

func TestHandleSearchNotesValidation(t *testing.T) {
	tl := testTools(t)

	res, _, err := tl.handleSearchNotes(context.Background(), nil, searchInput{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(resultText(t, res), "query is required") {
		t.Fatalf("missing validation message: %s", resultText(t, res))
	}

	res, _, _ = tl.handleSearchNotes(context.Background(), nil, searchInput{Query: "no such topic anywhere"})
	if !strings.Contains(resultText(t, res), "No results found") {
		t.Fatalf("missing empty-result message: %s", resultText(t, res))
	}
}

func TestHandleRecallPreview(t *testing.T) {
	tl := testTools(t)

	res, _, err := tl.handleRecallPreview(context.Background(), nil, recallInput{Prompt: "search my notes rust ownership"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	text := resultText(t, res)

	var preview struct {
		Skipped bool   `json:"skipped"`
		Reason  string `json:"reason"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal([]byte(text), &preview); err != nil {
		t.Fatalf("preview is not JSON: %v\n%s", err, text)
	}
	if preview.Skipped {
		t.Fatalf("skipped: %s", preview.Reason)
	}
	if preview.Reason != "explicit_force" {
		t.Fatalf("reason = %q, want explicit_force", preview.Reason)
	}
	if !strings.Contains(preview.Context, "<recalled-notes>") {
		t.Fatalf("context missing marker:\n%s", preview.Context)
	}
}

func TestHandleSyncNowDisabled(t *testing.T) {
	tl := testTools(t)

	res, _, err := tl.handleSyncNow(context.Background(), nil, syncInput{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(resultText(t, res), "disabled") {
		t.Fatalf("expected a disabled-index message, got: %s", resultText(t, res))
	}
}

func TestHandleIndexStats(t *testing.T) {
	tl := testTools(t)

	res, _, err := tl.handleIndexStats(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	text := resultText(t, res)

	var report struct {
		Index struct {
			TotalDocs int `json:"totalDocs"`
		} `json:"index"`
		Recall struct {
			Recalls int64 `json:"recalls"`
		} `json:"recall"`
	}
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		t.Fatalf("stats are not JSON: %v\n%s", err, text)
	}
	if report.Index.TotalDocs != 1 {
		t.Fatalf("index.totalDocs = %d, want 1", report.Index.TotalDocs)
	}
	if report.Recall.Recalls < 0 {
		t.Fatalf("recall counters missing: %s", text)
	}
}
