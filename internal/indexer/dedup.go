package indexer

import "strings"

// dedupLines drops lines whose normalized form already appeared within the
// last window lines. Texts shorter than activation lines pass through
// untouched. Normalization trims whitespace and leading list markers so
// "1. foo" and "- foo" count as the same line.
func dedupLines(text string, window, activation int) string {
	if window <= 0 || activation <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < activation {
		return text
	}

	inWindow := make(map[string]bool, window)
	var queue []string
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		norm := normalizeLine(line)
		if norm != "" {
			if inWindow[norm] {
				continue
			}
			inWindow[norm] = true
			queue = append(queue, norm)
			if len(queue) > window {
				delete(inWindow, queue[0])
				queue = queue[1:]
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func normalizeLine(line string) string {
	return stripListPrefix(strings.TrimSpace(line))
}

// stripListPrefix removes a leading "- ", "* ", "+ ", "3. " or "3) " marker.
func stripListPrefix(s string) string {
	for _, p := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && (s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}
