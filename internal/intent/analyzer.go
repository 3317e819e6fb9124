// Package intent gates recall and distills prompts into search intents.
package intent

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
)

// Intent types.
const (
	TypeChat    = "chat"
	TypeCommand = "command"
	TypeReview  = "review"
	TypeSearch  = "search"
	TypeQuery   = "query"
)

// GateDecision says whether recall should run and why.
type GateDecision struct {
	Should bool   `json:"should"`
	Reason string `json:"reason"`
}

// Intent is the distilled search intent of a prompt.
type Intent struct {
	Type      string     `json:"type"`
	Keywords  []string   `json:"keywords"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
}

// Analysis bundles the gate decision with the intent and the effective
// query text (force phrases stripped).
type Analysis struct {
	Gate   GateDecision `json:"gate"`
	Intent Intent       `json:"intent"`
	Query  string       `json:"query"`
}

// Analyzer evaluates prompts against the configured gating rules.
type Analyzer struct {
	cfg       config.RecallConfig
	skipTypes map[string]bool
}

// NewAnalyzer builds an analyzer from recall configuration.
func NewAnalyzer(cfg config.RecallConfig) *Analyzer {
	skip := make(map[string]bool, len(cfg.SkipIntentTypes))
	for _, t := range cfg.SkipIntentTypes {
		skip[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Analyzer{cfg: cfg, skipTypes: skip}
}

// Analyze runs the gating rules in order. hasLinkedDoc reports whether
// the prompt carries a resolvable note link, which bypasses the length
// gate.
func (a *Analyzer) Analyze(prompt string, hasLinkedDoc bool) Analysis {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)

	if matchPhrase(lower, a.cfg.SkipPhrases) != "" {
		return a.analysis(GateDecision{false, "explicit_skip"}, trimmed)
	}

	if phrase := matchPhrase(lower, a.cfg.ForcePhrases); phrase != "" {
		query := stripForcePhrase(trimmed, phrase)
		return a.analysis(GateDecision{true, "explicit_force"}, query)
	}

	if hasLinkedDoc {
		return a.analysis(GateDecision{true, "linked_doc"}, trimmed)
	}

	if utf8.RuneCountInString(trimmed) < a.cfg.MinPromptLength {
		return a.analysis(GateDecision{false, "too_short"}, trimmed)
	}

	if isGreeting(trimmed) {
		return a.analysis(GateDecision{false, "greeting"}, trimmed)
	}

	typ := intentType(trimmed)
	if a.skipTypes[typ] {
		return a.analysis(GateDecision{false, "intent_" + typ}, trimmed)
	}

	return a.analysis(GateDecision{true, "default"}, trimmed)
}

func (a *Analyzer) analysis(gate GateDecision, query string) Analysis {
	return Analysis{
		Gate: gate,
		Intent: Intent{
			Type:      intentType(query),
			Keywords:  ExtractKeywords(query, a.cfg.MaxKeywords),
			TimeRange: DetectTimeRange(query, time.Now()),
		},
		Query: query,
	}
}

// matchPhrase returns the first configured phrase contained in the
// lowercased prompt.
func matchPhrase(lowerPrompt string, phrases []string) string {
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lowerPrompt, p) {
			return p
		}
	}
	return ""
}

// stripForcePhrase removes the matched force phrase plus one leading
// connector, so "search my notes for X" queries for "X".
func stripForcePhrase(prompt, phrase string) string {
	lower := strings.ToLower(prompt)
	i := strings.Index(lower, phrase)
	if i < 0 {
		return prompt
	}
	rest := strings.TrimSpace(prompt[:i] + prompt[i+len(phrase):])

	restLower := strings.ToLower(rest)
	for _, conn := range []string{"for ", "about ", "on ", "regarding ", "关于", "有关", "：", ":", "，", ","} {
		if strings.HasPrefix(restLower, conn) {
			rest = strings.TrimSpace(rest[len(conn):])
			break
		}
	}
	return rest
}

var greetingExact = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "hiya": true,
	"thanks": true, "thank you": true, "ok": true, "okay": true,
	"你好": true, "您好": true, "在吗": true, "在不在": true,
	"嗨": true, "哈喽": true, "谢谢": true, "好的": true,
}

var greetingRes = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hey|hello|yo)( there| again)?[\s!.,?~]*$`),
	regexp.MustCompile(`^good (morning|afternoon|evening|night)[\s!.]*$`),
	regexp.MustCompile(`^(你好|您好|早上好|下午好|晚上好|嗨|哈喽)+[！!。～~\s]*$`),
}

func isGreeting(prompt string) bool {
	norm := strings.ToLower(strings.TrimSpace(prompt))
	if greetingExact[strings.TrimRight(norm, "!！.。?？~～ ")] {
		return true
	}
	for _, re := range greetingRes {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

var (
	reviewWords = []string{"回顾", "review", "总结", "summary"}
	searchWords = []string{"查找", "search", "找", "find"}
)

func intentType(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if isGreeting(trimmed) {
		return TypeChat
	}
	if strings.HasPrefix(trimmed, "/") {
		return TypeCommand
	}
	lower := strings.ToLower(trimmed)
	for _, w := range reviewWords {
		if strings.Contains(lower, w) {
			return TypeReview
		}
	}
	for _, w := range searchWords {
		if strings.Contains(lower, w) {
			return TypeSearch
		}
	}
	return TypeQuery
}
