package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// splitSections cuts markdown into sections at the configured heading
// levels. A section spans its heading line up to (excluding) the next
// selected-level heading; headings at other levels stay inside the body.
// Section ids are "<docId>::h<level>::<lineIndex>". Returns nil when no
// selected heading occurs.
func splitSections(docID, markdown string, levels []int, maxChars, maxSections int) []store.Section {
	if len(levels) == 0 {
		return nil
	}
	selected := make(map[int]bool, len(levels))
	for _, l := range levels {
		if l >= 1 && l <= 6 {
			selected[l] = true
		}
	}

	lines := strings.Split(markdown, "\n")
	type mark struct{ line, level int }
	var marks []mark
	for i, line := range lines {
		if lvl := headingLevel(line); lvl > 0 && selected[lvl] {
			marks = append(marks, mark{line: i, level: lvl})
		}
	}
	if len(marks) == 0 {
		return nil
	}

	var secs []store.Section
	for mi, m := range marks {
		end := len(lines)
		if mi+1 < len(marks) {
			end = marks[mi+1].line
		}
		content := strings.TrimRight(strings.Join(lines[m.line:end], "\n"), " \n")
		if maxChars > 0 {
			content = capRunes(content, maxChars)
		}
		secs = append(secs, store.Section{
			ID:      fmt.Sprintf("%s::h%d::%d", docID, m.level, m.line),
			Content: content,
		})
		if maxSections > 0 && len(secs) >= maxSections {
			break
		}
	}
	return secs
}

// headingLevel returns the ATX heading level of a line, 0 for non-headings.
func headingLevel(line string) int {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(line) || line[i] != ' ' {
		return 0
	}
	return i
}

// capRunes truncates to max runes, appending an ellipsis when cut.
func capRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
