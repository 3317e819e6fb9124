package intent

import (
	"sort"
	"strings"
	"unicode"
)

const maxBigramsPerRun = 20

// Framing particles carry no search value and would otherwise glue
// unrelated CJK runs together.
var cjkParticles = []string{
	"告诉我", "帮我看看", "帮我", "请问", "请帮", "想知道", "我想", "我的", "我们",
	"一下", "什么时候", "什么", "怎么样", "怎么", "如何", "为什么", "关于", "有关",
	"这个", "那个", "哪些", "哪个", "可以", "能不能", "是不是",
	"吗", "呢", "吧", "啊", "的", "了",
}

var latinStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "and": true, "or": true,
	"not": true, "it": true, "its": true, "this": true, "that": true,
	"these": true, "those": true, "my": true, "me": true, "we": true,
	"our": true, "you": true, "your": true, "i": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "should": true, "would": true,
	"have": true, "has": true, "had": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "how": true, "why": true,
	"please": true, "tell": true, "show": true, "about": true, "any": true,
	"all": true, "some": true, "there": true, "here": true, "just": true,
	"like": true, "into": true, "from": true, "them": true, "then": true,
	"than": true, "will": true, "want": true, "need": true, "know": true,
	"let": true, "if": true, "so": true, "up": true, "out": true, "by": true,
	"as": true, "am": true,
}

// ExtractKeywords pulls CJK runs and Latin terms out of free text,
// longest first, capped at maxKeywords.
func ExtractKeywords(text string, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = 12
	}
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}

	var candidates []string
	candidates = append(candidates, cjkKeywords(normalized)...)
	candidates = append(candidates, latinKeywords(normalized)...)
	if len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	deduped := candidates[:0]
	for _, k := range candidates {
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, k)
		}
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return len(deduped[i]) > len(deduped[j])
	})

	// Substring pruning applies to Latin terms only. CJK 2-grams are
	// substrings of their run by construction and must survive.
	kept := make([]string, 0, len(deduped))
	for _, k := range deduped {
		if !HasCJK(k) && containedInAny(k, kept) {
			continue
		}
		kept = append(kept, k)
		if len(kept) == maxKeywords {
			break
		}
	}
	return kept
}

// normalizeText collapses whitespace and strips punctuation, keeping
// CJK characters and alphanumerics. CJK and Latin segments are split
// apart so "Rust简历" yields both terms.
func normalizeText(text string) string {
	const (
		classNone = iota
		classCJK
		classLatin
	)
	var b strings.Builder
	b.Grow(len(text))
	prev := classNone
	writeSep := func() {
		if b.Len() > 0 && prev != classNone {
			b.WriteByte(' ')
		}
		prev = classNone
	}
	for _, r := range text {
		switch {
		case IsCJKRune(r):
			if prev == classLatin {
				writeSep()
			}
			b.WriteRune(r)
			prev = classCJK
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if prev == classCJK {
				writeSep()
			}
			b.WriteRune(r)
			prev = classLatin
		default:
			writeSep()
		}
	}
	return strings.TrimSpace(b.String())
}

func cjkKeywords(normalized string) []string {
	stripped := normalized
	for _, p := range cjkParticles {
		stripped = strings.ReplaceAll(stripped, p, " ")
	}

	var keywords []string
	var run []rune
	flush := func() {
		if len(run) >= 2 {
			keywords = append(keywords, string(run))
			if len(run) >= 5 {
				keywords = append(keywords, bigrams(run)...)
			}
		}
		run = run[:0]
	}
	for _, r := range stripped {
		if IsCJKRune(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return keywords
}

func bigrams(run []rune) []string {
	n := len(run) - 1
	if n > maxBigramsPerRun {
		n = maxBigramsPerRun
	}
	grams := make([]string, 0, n)
	for i := 0; i < n; i++ {
		grams = append(grams, string(run[i:i+2]))
	}
	return grams
}

func latinKeywords(normalized string) []string {
	var keywords []string
	for _, field := range strings.Fields(normalized) {
		word := strings.ToLower(field)
		if len([]rune(word)) <= 1 || HasCJK(word) || latinStopWords[word] {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

func containedInAny(needle string, kept []string) bool {
	for _, k := range kept {
		if strings.Contains(k, needle) {
			return true
		}
	}
	return false
}

// IsCJKRune reports whether r is a CJK ideograph or kana/hangul.
func IsCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// HasCJK reports whether s contains at least one CJK rune.
func HasCJK(s string) bool {
	for _, r := range s {
		if IsCJKRune(r) {
			return true
		}
	}
	return false
}

// CountCJK returns the number of CJK keywords in the list.
func CountCJK(keywords []string) int {
	n := 0
	for _, k := range keywords {
		if HasCJK(k) {
			n++
		}
	}
	return n
}
