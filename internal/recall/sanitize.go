package recall

import (
	"context"
	"strings"

	"github.com/mdombrov-33/go-promptguard/detector"
)

// promptGuard is the package-level detector instance, initialized once
// with pattern-matching and statistical detectors enabled and no LLM
// judge so detection stays sub-millisecond on the hook path.
var promptGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(10000),
)

// Injected note content matching these is dropped before it reaches the
// agent. Fallback list behind the promptguard detector.
var injectionPatterns = []string{
	"ignore previous",
	"ignore all previous",
	"ignore above",
	"disregard previous",
	"disregard all previous",
	"you are now",
	"new instructions",
	"system prompt",
	"<system>",
	"</system>",
}

const filteredNotice = "[content filtered for security]"

func detectInjection(text string) bool {
	if len(text) == 0 {
		return false
	}
	result := promptGuard.Detect(context.Background(), text)
	return !result.Safe
}

// sanitizeText clears note content for injection into the agent
// context. Detected injection attempts are replaced wholesale; clean
// text only gets its structural markers escaped.
func sanitizeText(text string) string {
	if detectInjection(text) {
		return filteredNotice
	}
	lower := strings.ToLower(text)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return filteredNotice
		}
	}
	return escapeMarkers(text)
}

// escapeMarkers neutralizes the context wrapper tags inside note
// content. A crafted note containing the close marker would otherwise
// escape the wrapper and inject instructions at the top level.
func escapeMarkers(text string) string {
	if !strings.Contains(strings.ToLower(text), "recalled-notes") {
		return text
	}
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(text) {
		matched := false
		for _, tag := range []string{"recalled-notes"} {
			closeTag := "</" + tag + ">"
			openTag := "<" + tag + ">"
			if strings.HasPrefix(lower[i:], closeTag) {
				b.WriteString("[/" + tag + "]")
				i += len(closeTag)
				matched = true
				break
			}
			if strings.HasPrefix(lower[i:], openTag) {
				b.WriteString("[" + tag + "]")
				i += len(openTag)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String()
}
