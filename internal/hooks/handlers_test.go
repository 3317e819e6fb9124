package hooks

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

	"github.com/rs/zerolog"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// testPlugin registers a plugin against an unreachable note store with a
// seeded local index, so handlers exercise the degraded local-only path
// without any HTTP fixture.
func testPlugin(t *testing.T) *plugin.Plugin {
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
	return p
}

func TestBeforeAgentStartInjectsContext(t *testing.T) {
	p := testPlugin(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := BeforeAgentStart(ctx, p, Event{Prompt: "search my notes rust ownership"})

	if out.Skipped {
		t.Fatalf("skipped: %s", out.Reason)
	}
	if !strings.Contains(out.PrependContext, "<recalled-notes>") {
		t.Fatalf("prependContext missing open marker:\n%s", out.PrependContext)
	}
	if !strings.Contains(out.PrependContext, "Rust") {
		t.Fatalf("prependContext missing recalled content:\n%s", out.PrependContext)
	}
	if len(out.RecalledDocs) == 0 {
		t.Fatalf("no recalled doc refs")
	}
	ref := out.RecalledDocs[0]
	if ref.DocID != "20240101120000-rustdoc" || ref.Source != "search" {
		t.Fatalf("unexpected doc ref: %+v", ref)
	}
	if ref.Score <= 0 {
		t.Fatalf("doc ref score = %v, want > 0", ref.Score)
	}
}

func TestBeforeAgentStartSkipsCommand(t *testing.T) {
	p := testPlugin(t)
	ctx := context.Background()

	out := BeforeAgentStart(ctx, p, Event{Prompt: "/help please show commands"})
	if !out.Skipped {
		t.Fatalf("command prompt should skip recall")
	}
	if out.Reason != "intent_command" {
		t.Fatalf("Reason = %q, want intent_command", out.Reason)
	}
	if out.PrependContext != "" || len(out.RecalledDocs) != 0 {
		t.Fatalf("skip must not inject context: %+v", out)
	}
}

func TestBeforeAgentStartEmptyPrompt(t *testing.T) {
	p := testPlugin(t)
	out := BeforeAgentStart(context.Background(), p, Event{})
	if !out.Skipped || out.Reason != "empty_prompt" {
		t.Fatalf("got %+v, want empty_prompt skip", out)
	}
}

func TestDispatchShapes(t *testing.T) {
	p := testPlugin(t)
	ctx := context.Background()

	for _, name := range []string{"agent_end", "command:new", "totally_new_event"} {
		data, err := json.Marshal(Dispatch(ctx, p, name, Event{SessionID: "s1"}))
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		if string(data) != "{}" {
			t.Fatalf("%s: response = %s, want {}", name, data)
		}
	}
}
