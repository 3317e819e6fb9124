package siyuan

import (
	"regexp"
	"strings"
)

// Kramdown inline attribute list, e.g. {: id="…" updated="…"}.
var inlineAttrRe = regexp.MustCompile(`\{:[^{}]*\}`)

// StripKramdownAttrs removes kramdown attribute syntax from markdown:
// standalone attribute lines disappear entirely, inline blobs are cut
// out.
func StripKramdownAttrs(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "{:") && strings.HasSuffix(t, "}") {
			continue
		}
		out = append(out, strings.TrimRight(inlineAttrRe.ReplaceAllString(line, ""), " "))
	}
	return strings.Join(out, "\n")
}
