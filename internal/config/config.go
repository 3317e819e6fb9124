// Package config loads and merges plugin configuration.
// Sources, lowest to highest precedence: built-in defaults, the TOML config
// file, overrides passed by the gateway at registration, environment variables
// (SIYUAN_API_URL, SIYUAN_API_TOKEN).
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Search path names accepted in recall.searchPaths.
const (
	PathFTS      = "fts"
	PathFulltext = "fulltext"
	PathSQL      = "sql"
)

// Config holds all plugin configuration.
type Config struct {
	Siyuan    SiyuanConfig    `toml:"siyuan" json:"siyuan"`
	Index     IndexConfig     `toml:"index" json:"index"`
	Recall    RecallConfig    `toml:"recall" json:"recall"`
	LinkedDoc LinkedDocConfig `toml:"linkedDoc" json:"linkedDoc"`
	Web       WebConfig       `toml:"web" json:"web"`
}

// SiyuanConfig holds note-store connection settings.
type SiyuanConfig struct {
	APIURL           string `toml:"apiUrl" json:"apiUrl"`
	APIToken         string `toml:"apiToken" json:"apiToken"`
	RequestTimeoutMs int    `toml:"requestTimeoutMs" json:"requestTimeoutMs"`
}

// Timeout returns the per-request timeout.
func (c *SiyuanConfig) Timeout() time.Duration {
	if c.RequestTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Validate validates the note-store settings.
func (c *SiyuanConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required),
		validation.Field(&c.RequestTimeoutMs, validation.Min(0)),
	); err != nil {
		return err
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("siyuan: apiUrl %q is not a valid URL", c.APIURL)
	}
	return nil
}

// IndexConfig holds local index and sync settings.
type IndexConfig struct {
	Enabled                   bool     `toml:"enabled" json:"enabled"`
	DBPath                    string   `toml:"dbPath" json:"dbPath"`
	SyncIntervalMs            int      `toml:"syncIntervalMs" json:"syncIntervalMs"`
	PrivacyNotebook           string   `toml:"privacyNotebook" json:"privacyNotebook"`
	ArchiveNotebook           string   `toml:"archiveNotebook" json:"archiveNotebook"`
	SkipNotebookNames         []string `toml:"skipNotebookNames" json:"skipNotebookNames"`
	SectionHeadingLevels      []int    `toml:"sectionHeadingLevels" json:"sectionHeadingLevels"`
	MaxSectionsToIndex        int      `toml:"maxSectionsToIndex" json:"maxSectionsToIndex"`
	SectionMaxChars           int      `toml:"sectionMaxChars" json:"sectionMaxChars"`
	SectionDedupLines         int      `toml:"sectionDedupLines" json:"sectionDedupLines"`
	SectionDedupWindowSize    int      `toml:"sectionDedupWindowSize" json:"sectionDedupWindowSize"`
	DocContentDedupLines      int      `toml:"docContentDedupLines" json:"docContentDedupLines"`
	DocContentDedupWindowSize int      `toml:"docContentDedupWindowSize" json:"docContentDedupWindowSize"`
	SQLPageSize               int      `toml:"sqlPageSize" json:"sqlPageSize"`
	MaxConcurrentFetches      int      `toml:"maxConcurrentFetches" json:"maxConcurrentFetches"`
	CleanupAgeDays            int      `toml:"cleanupAgeDays" json:"cleanupAgeDays"`
}

// SyncInterval returns the periodic sync interval.
func (c *IndexConfig) SyncInterval() time.Duration {
	if c.SyncIntervalMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

// ResolveDBPath returns the database path, defaulting to a per-user cache dir.
func (c *IndexConfig) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(cacheDir, "openclaw-siyuan", "index.db"), nil
}

// ExcludedNotebookNames returns the lowercased set of notebook names that must
// never be indexed: skipNotebookNames plus the privacy and archive notebooks.
func (c *IndexConfig) ExcludedNotebookNames() map[string]bool {
	excluded := make(map[string]bool, len(c.SkipNotebookNames)+2)
	for _, name := range c.SkipNotebookNames {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
			excluded[n] = true
		}
	}
	if n := strings.ToLower(strings.TrimSpace(c.PrivacyNotebook)); n != "" {
		excluded[n] = true
	}
	if n := strings.ToLower(strings.TrimSpace(c.ArchiveNotebook)); n != "" {
		excluded[n] = true
	}
	return excluded
}

// ExcludedNotebookList returns ExcludedNotebookNames as a sorted slice.
func (c *IndexConfig) ExcludedNotebookList() []string {
	set := c.ExcludedNotebookNames()
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate validates the index settings.
func (c *IndexConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.SyncIntervalMs, validation.Min(0)),
		validation.Field(&c.MaxSectionsToIndex, validation.Min(0)),
		validation.Field(&c.SectionMaxChars, validation.Min(0)),
		validation.Field(&c.SQLPageSize, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.MaxConcurrentFetches, validation.Min(1), validation.Max(64)),
		validation.Field(&c.CleanupAgeDays, validation.Min(0)),
	); err != nil {
		return err
	}
	for _, lvl := range c.SectionHeadingLevels {
		if lvl < 1 || lvl > 6 {
			return fmt.Errorf("index: sectionHeadingLevels entry %d out of range 1..6", lvl)
		}
	}
	return nil
}

// TwoStageConfig tunes the candidate-recall / rerank pipeline.
type TwoStageConfig struct {
	Enabled               bool           `toml:"enabled" json:"enabled"`
	CandidateLimitPerPath int            `toml:"candidateLimitPerPath" json:"candidateLimitPerPath"`
	FinalBlockLimit       int            `toml:"finalBlockLimit" json:"finalBlockLimit"`
	PerDocBlockCap        int            `toml:"perDocBlockCap" json:"perDocBlockCap"`
	FulltextOptions       map[string]any `toml:"fulltextOptions" json:"fulltextOptions"`
}

// RecallConfig holds retrieval and gating settings.
type RecallConfig struct {
	Enabled              bool             `toml:"enabled" json:"enabled"`
	MinPromptLength      int              `toml:"minPromptLength" json:"minPromptLength"`
	MaxContextTokens     int              `toml:"maxContextTokens" json:"maxContextTokens"`
	MaxDocs              int              `toml:"maxDocs" json:"maxDocs"`
	MaxKeywords          int              `toml:"maxKeywords" json:"maxKeywords"`
	SearchPaths          []string         `toml:"searchPaths" json:"searchPaths"`
	TopicKeywords        []string         `toml:"topicKeywords" json:"topicKeywords"`
	SkipIntentTypes      []string         `toml:"skipIntentTypes" json:"skipIntentTypes"`
	SkipPhrases          []string         `toml:"skipPhrases" json:"skipPhrases"`
	ForcePhrases         []string         `toml:"forcePhrases" json:"forcePhrases"`
	BlockExcerptMaxChars int              `toml:"blockExcerptMaxChars" json:"blockExcerptMaxChars"`
	TwoStage             TwoStageConfig   `toml:"twoStage" json:"twoStage"`
	LinkedDoc            *LinkedDocConfig `toml:"linkedDoc" json:"linkedDoc,omitempty"` // legacy location, see normalize
}

// Validate validates the recall settings.
func (c *RecallConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MinPromptLength, validation.Min(0)),
		validation.Field(&c.MaxContextTokens, validation.Min(1)),
		validation.Field(&c.MaxDocs, validation.Min(1), validation.Max(50)),
		validation.Field(&c.MaxKeywords, validation.Min(1), validation.Max(64)),
		validation.Field(&c.BlockExcerptMaxChars, validation.Min(0)),
	); err != nil {
		return err
	}
	for _, p := range c.SearchPaths {
		switch p {
		case PathFTS, PathFulltext, PathSQL:
		default:
			return fmt.Errorf("recall: unknown search path %q (want fts, fulltext or sql)", p)
		}
	}
	ts := &c.TwoStage
	return validation.ValidateStruct(ts,
		validation.Field(&ts.CandidateLimitPerPath, validation.Min(1), validation.Max(1000)),
		validation.Field(&ts.FinalBlockLimit, validation.Min(1), validation.Max(1000)),
		validation.Field(&ts.PerDocBlockCap, validation.Min(1), validation.Max(100)),
	)
}

// LinkedDocConfig controls inline note-link resolution.
type LinkedDocConfig struct {
	Enabled      bool     `toml:"enabled" json:"enabled"`
	HostKeywords []string `toml:"hostKeywords" json:"hostKeywords"`
	MaxCount     int      `toml:"maxCount" json:"maxCount"`
}

// Validate validates the linked-doc settings.
func (c *LinkedDocConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxCount, validation.Min(1), validation.Max(20)),
	)
}

// WebConfig holds the optional HTTP bridge address (serve mode only).
type WebConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Siyuan: SiyuanConfig{
			APIURL:           "http://127.0.0.1:6806",
			RequestTimeoutMs: 10000,
		},
		Index: IndexConfig{
			Enabled:                   true,
			SyncIntervalMs:            300000,
			SectionHeadingLevels:      []int{2},
			MaxSectionsToIndex:        50,
			SectionMaxChars:           1200,
			SectionDedupLines:         20,
			SectionDedupWindowSize:    200,
			DocContentDedupLines:      40,
			DocContentDedupWindowSize: 400,
			SQLPageSize:               200,
			MaxConcurrentFetches:      4,
			CleanupAgeDays:            30,
		},
		Recall: RecallConfig{
			Enabled:          true,
			MinPromptLength:  6,
			MaxContextTokens: 2000,
			MaxDocs:          5,
			MaxKeywords:      12,
			SearchPaths:      []string{PathFTS, PathFulltext, PathSQL},
			SkipIntentTypes:  []string{"chat", "command"},
			SkipPhrases: []string{
				"不用回忆", "不用查笔记", "不要查笔记",
				"don't recall", "no recall", "no context", "skip recall",
			},
			ForcePhrases: []string{
				"查一下我的笔记", "查我的笔记", "搜索我的笔记", "搜一下我的笔记",
				"search my notes", "check my notes", "look up my notes", "look in my notes",
			},
			BlockExcerptMaxChars: 540,
			TwoStage: TwoStageConfig{
				Enabled:               true,
				CandidateLimitPerPath: 100,
				FinalBlockLimit:       40,
				PerDocBlockCap:        6,
			},
		},
		LinkedDoc: LinkedDocConfig{
			Enabled:  true,
			MaxCount: 3,
		},
		Web: WebConfig{
			Addr: "127.0.0.1:18765",
		},
	}
}

// Load merges all configuration sources. path selects the TOML file; when
// empty the usual locations are probed. gatewayOverrides is an optional JSON
// document supplied by the gateway at plugin registration.
func Load(path string, gatewayOverrides []byte) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			meta, err := toml.DecodeFile(path, cfg)
			if err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			// Legacy location: [recall.linkedDoc] applies only when the
			// top-level [linkedDoc] section is absent from the file.
			if !meta.IsDefined("linkedDoc") && cfg.Recall.LinkedDoc != nil {
				cfg.LinkedDoc = *cfg.Recall.LinkedDoc
			}
			cfg.Recall.LinkedDoc = nil
		}
	}

	if len(gatewayOverrides) > 0 {
		if err := cfg.MergeJSON(gatewayOverrides); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// MergeJSON applies a partial JSON config over the receiver. Absent fields are
// left untouched; the legacy recall.linkedDoc location is honored when the
// document does not set the top-level linkedDoc key.
func (c *Config) MergeJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("parse gateway overrides: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("apply gateway overrides: %w", err)
	}
	if _, ok := keys["linkedDoc"]; !ok && c.Recall.LinkedDoc != nil {
		c.LinkedDoc = *c.Recall.LinkedDoc
	}
	c.Recall.LinkedDoc = nil
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIYUAN_API_URL"); v != "" {
		cfg.Siyuan.APIURL = v
	}
	if v := os.Getenv("SIYUAN_API_TOKEN"); v != "" {
		cfg.Siyuan.APIToken = v
	}
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	if err := c.Siyuan.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Recall.Validate(); err != nil {
		return err
	}
	return c.LinkedDoc.Validate()
}

// FindConfigFile probes the usual config locations.
func FindConfigFile() string {
	if p := os.Getenv("OPENCLAW_SIYUAN_CONFIG"); p != "" {
		return p
	}
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, "openclaw-siyuan.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "openclaw-siyuan", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultConfigPath returns where Generate writes when no path is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "openclaw-siyuan.toml"
	}
	return filepath.Join(home, ".config", "openclaw-siyuan", "config.toml")
}

// Generate writes a commented example config to path.
func Generate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(ExampleTOML()), 0o600)
}

// ExampleTOML returns a commented config with all defaults spelled out.
func ExampleTOML() string {
	var b strings.Builder
	b.WriteString("# openclaw-siyuan configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Priority: env vars > gateway overrides > this file > built-in defaults\n")
	b.WriteString("# Environment variables: SIYUAN_API_URL, SIYUAN_API_TOKEN\n\n")

	b.WriteString("[siyuan]\n")
	b.WriteString("apiUrl = \"http://127.0.0.1:6806\"\n")
	b.WriteString("# apiToken = \"\"              # Settings → About → API token\n")
	b.WriteString("requestTimeoutMs = 10000\n\n")

	b.WriteString("[index]\n")
	b.WriteString("enabled = true\n")
	b.WriteString("# dbPath = \"\"                # empty = <user cache dir>/openclaw-siyuan/index.db\n")
	b.WriteString("syncIntervalMs = 300000\n")
	b.WriteString("# privacyNotebook = \"私密\"    # never indexed, no traces left locally\n")
	b.WriteString("# archiveNotebook = \"归档\"\n")
	b.WriteString("# skipNotebookNames = [\"Inbox\"]\n")
	b.WriteString("sectionHeadingLevels = [2]\n")
	b.WriteString("maxSectionsToIndex = 50\n")
	b.WriteString("sectionMaxChars = 1200\n")
	b.WriteString("sqlPageSize = 200\n")
	b.WriteString("maxConcurrentFetches = 4\n")
	b.WriteString("cleanupAgeDays = 30\n\n")

	b.WriteString("[recall]\n")
	b.WriteString("enabled = true\n")
	b.WriteString("minPromptLength = 6\n")
	b.WriteString("maxContextTokens = 2000\n")
	b.WriteString("maxDocs = 5\n")
	b.WriteString("maxKeywords = 12\n")
	b.WriteString("searchPaths = [\"fts\", \"fulltext\", \"sql\"]\n")
	b.WriteString("# topicKeywords = [\"简历\", \"健康\"]  # narrow results to matching hpaths when mentioned\n")
	b.WriteString("skipIntentTypes = [\"chat\", \"command\"]\n")
	b.WriteString("blockExcerptMaxChars = 540\n\n")

	b.WriteString("[recall.twoStage]\n")
	b.WriteString("enabled = true\n")
	b.WriteString("candidateLimitPerPath = 100\n")
	b.WriteString("finalBlockLimit = 40\n")
	b.WriteString("perDocBlockCap = 6\n\n")

	b.WriteString("[linkedDoc]\n")
	b.WriteString("enabled = true\n")
	b.WriteString("# hostKeywords = [\"127.0.0.1\", \"siyuan\"]  # empty = any host\n")
	b.WriteString("maxCount = 3\n\n")

	b.WriteString("[web]\n")
	b.WriteString("addr = \"127.0.0.1:18765\"  # serve mode only\n")
	return b.String()
}
