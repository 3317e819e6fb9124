package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openclaw-siyuan.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Siyuan.APIURL != "http://127.0.0.1:6806" {
		t.Errorf("apiUrl default = %q", cfg.Siyuan.APIURL)
	}
	if !cfg.Recall.Enabled || !cfg.Index.Enabled || !cfg.LinkedDoc.Enabled {
		t.Error("enabled flags should default to true")
	}
	if cfg.Recall.TwoStage.CandidateLimitPerPath != 100 {
		t.Errorf("candidateLimitPerPath = %d, want 100", cfg.Recall.TwoStage.CandidateLimitPerPath)
	}
	if got := cfg.Index.SyncInterval().Minutes(); got != 5 {
		t.Errorf("sync interval = %v min, want 5", got)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[siyuan]
apiUrl = "http://10.0.0.2:6806"
apiToken = "tok"

[recall]
maxDocs = 3
searchPaths = ["fts"]

[recall.twoStage]
perDocBlockCap = 2
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Siyuan.APIURL != "http://10.0.0.2:6806" || cfg.Siyuan.APIToken != "tok" {
		t.Errorf("siyuan section not applied: %+v", cfg.Siyuan)
	}
	if cfg.Recall.MaxDocs != 3 {
		t.Errorf("maxDocs = %d, want 3", cfg.Recall.MaxDocs)
	}
	if len(cfg.Recall.SearchPaths) != 1 || cfg.Recall.SearchPaths[0] != PathFTS {
		t.Errorf("searchPaths = %v", cfg.Recall.SearchPaths)
	}
	if cfg.Recall.TwoStage.PerDocBlockCap != 2 {
		t.Errorf("perDocBlockCap = %d, want 2", cfg.Recall.TwoStage.PerDocBlockCap)
	}
	// Untouched sections keep defaults.
	if cfg.Recall.MaxContextTokens != 2000 {
		t.Errorf("maxContextTokens = %d, want default 2000", cfg.Recall.MaxContextTokens)
	}
}

func TestLoad_LegacyLinkedDocLocation(t *testing.T) {
	path := writeConfig(t, `
[recall.linkedDoc]
enabled = true
hostKeywords = ["siyuan.local"]
maxCount = 5
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LinkedDoc.MaxCount != 5 {
		t.Errorf("maxCount = %d, want 5 from legacy location", cfg.LinkedDoc.MaxCount)
	}
	if len(cfg.LinkedDoc.HostKeywords) != 1 || cfg.LinkedDoc.HostKeywords[0] != "siyuan.local" {
		t.Errorf("hostKeywords = %v", cfg.LinkedDoc.HostKeywords)
	}
	if cfg.Recall.LinkedDoc != nil {
		t.Error("legacy pointer should be cleared after normalization")
	}
}

func TestLoad_TopLevelLinkedDocWins(t *testing.T) {
	path := writeConfig(t, `
[linkedDoc]
enabled = true
maxCount = 2

[recall.linkedDoc]
enabled = true
maxCount = 9
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LinkedDoc.MaxCount != 2 {
		t.Errorf("maxCount = %d, want top-level 2", cfg.LinkedDoc.MaxCount)
	}
}

func TestLoad_GatewayOverrides(t *testing.T) {
	path := writeConfig(t, `
[recall]
maxDocs = 3
`)
	overrides := []byte(`{"recall":{"maxDocs":7},"siyuan":{"apiToken":"from-gateway"}}`)
	cfg, err := Load(path, overrides)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recall.MaxDocs != 7 {
		t.Errorf("maxDocs = %d, want gateway 7", cfg.Recall.MaxDocs)
	}
	if cfg.Siyuan.APIToken != "from-gateway" {
		t.Errorf("apiToken = %q", cfg.Siyuan.APIToken)
	}
}

func TestLoad_EnvWins(t *testing.T) {
	path := writeConfig(t, `
[siyuan]
apiUrl = "http://file:6806"
apiToken = "file-token"
`)
	t.Setenv("SIYUAN_API_URL", "http://env:6806")
	t.Setenv("SIYUAN_API_TOKEN", "env-token")

	overrides := []byte(`{"siyuan":{"apiToken":"gateway-token"}}`)
	cfg, err := Load(path, overrides)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Siyuan.APIURL != "http://env:6806" {
		t.Errorf("apiUrl = %q, want env value", cfg.Siyuan.APIURL)
	}
	if cfg.Siyuan.APIToken != "env-token" {
		t.Errorf("apiToken = %q, want env value", cfg.Siyuan.APIToken)
	}
}

func TestLoad_RejectsBadSearchPath(t *testing.T) {
	path := writeConfig(t, `
[recall]
searchPaths = ["fts", "vector"]
`)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for unknown search path")
	}
}

func TestLoad_RejectsBadHeadingLevel(t *testing.T) {
	path := writeConfig(t, `
[index]
sectionHeadingLevels = [0]
`)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for heading level 0")
	}
}

func TestLoad_RejectsBadURL(t *testing.T) {
	path := writeConfig(t, `
[siyuan]
apiUrl = "not a url"
`)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for invalid apiUrl")
	}
}

func TestExcludedNotebookNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.SkipNotebookNames = []string{"Inbox", "  Drafts "}
	cfg.Index.PrivacyNotebook = "私密"
	cfg.Index.ArchiveNotebook = "Archive"

	excluded := cfg.Index.ExcludedNotebookNames()
	for _, want := range []string{"inbox", "drafts", "私密", "archive"} {
		if !excluded[want] {
			t.Errorf("excluded set missing %q: %v", want, excluded)
		}
	}
	if len(excluded) != 4 {
		t.Errorf("excluded set size = %d, want 4", len(excluded))
	}
}

func TestMergeJSON_LegacyLinkedDoc(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.MergeJSON([]byte(`{"recall":{"linkedDoc":{"enabled":true,"maxCount":4}}}`)); err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if cfg.LinkedDoc.MaxCount != 4 {
		t.Errorf("maxCount = %d, want 4 from legacy key", cfg.LinkedDoc.MaxCount)
	}
}

func TestExampleTOML_RoundTrips(t *testing.T) {
	path := writeConfig(t, ExampleTOML())
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated config does not validate: %v", err)
	}
}
