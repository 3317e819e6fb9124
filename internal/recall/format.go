package recall

import (
	"strings"
	"unicode/utf8"
)

// Context wrapper markers. Downstream pipelines detect the injected
// block by these exact lines, so they must stay bit-stable.
const (
	OpenMarker  = "<recalled-notes>"
	CloseMarker = "</recalled-notes>"

	preamble = "Relevant notes recalled from your knowledge base (for reference):"

	// A section shorter than this is not worth rendering.
	minSectionRoom = 60

	maxBlocksPerDoc = 5
)

// FormatContext renders docs into the prependable context block. The
// token budget is approximated as maxTokens×4 characters; documents are
// rendered in order until it runs out.
func FormatContext(docs []Doc, maxTokens, blockExcerptMaxChars int) string {
	if len(docs) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if blockExcerptMaxChars <= 0 {
		blockExcerptMaxChars = 540
	}

	f := &contextWriter{max: maxTokens * 4}
	f.max -= utf8.RuneCountInString("\n" + CloseMarker)
	f.write(OpenMarker + "\n" + preamble + "\n")

	for _, d := range docs {
		if f.room() < minSectionRoom {
			break
		}
		if d.Source == SourceLinkedDoc && d.Markdown != "" {
			f.linkedSection(d)
		} else {
			f.docSection(d, blockExcerptMaxChars)
		}
	}

	f.b.WriteString("\n" + CloseMarker)
	return f.b.String()
}

type contextWriter struct {
	b    strings.Builder
	used int
	max  int
}

func (f *contextWriter) room() int { return f.max - f.used }

func (f *contextWriter) write(s string) {
	f.b.WriteString(s)
	f.used += utf8.RuneCountInString(s)
}

// linkedSection renders a linked doc as its full markdown in a fenced
// block, truncated to the remaining budget.
func (f *contextWriter) linkedSection(d Doc) {
	header := "\n## 🔗 " + headerText(d) + "\n"
	const fenceOpen = "```markdown\n"
	const fenceClose = "\n```\n"

	overhead := utf8.RuneCountInString(header) + utf8.RuneCountInString(fenceOpen) + utf8.RuneCountInString(fenceClose)
	avail := f.room() - overhead
	if avail < minSectionRoom {
		return
	}
	content := sanitizeText(d.Markdown)
	if utf8.RuneCountInString(content) > avail {
		content = truncateRunes(content, avail-3) + "..."
	}
	f.write(header + fenceOpen + content + fenceClose)
}

// docSection renders a search doc header plus its best blocks as a
// bullet list with indented excerpts.
func (f *contextWriter) docSection(d Doc, excerptMax int) {
	header := "\n## 📄 " + headerText(d) + "\n"
	if f.room()-utf8.RuneCountInString(header) < minSectionRoom {
		return
	}
	f.write(header)

	count := 0
	for _, blk := range d.Blocks {
		if count == maxBlocksPerDoc {
			break
		}
		entry := renderBlock(blk, excerptMax)
		if entry == "" {
			continue
		}
		n := utf8.RuneCountInString(entry)
		if n > f.room() {
			if f.room() < minSectionRoom {
				break
			}
			entry = truncateRunes(entry, f.room()-4) + "...\n"
		}
		f.write(entry)
		count++
	}
}

// renderBlock emits "- first line" plus an indented excerpt of the
// remaining content.
func renderBlock(b Block, excerptMax int) string {
	lines := strings.Split(strings.TrimSpace(b.Content), "\n")
	first := ""
	rest := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if first == "" {
			first = strings.TrimSpace(strings.TrimLeft(t, "# "))
			continue
		}
		rest = append(rest, t)
	}
	if first == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("- ")
	sb.WriteString(sanitizeText(truncateWithEllipsis(first, excerptMax)))
	sb.WriteString("\n")
	if len(rest) > 0 {
		excerpt := truncateWithEllipsis(strings.Join(rest, " "), excerptMax)
		sb.WriteString("  ")
		sb.WriteString(sanitizeText(excerpt))
		sb.WriteString("\n")
	}
	return sb.String()
}

func headerText(d Doc) string {
	name := strings.TrimSpace(d.HPath)
	if name == "" {
		name = d.Title
	}
	if name == "" {
		name = d.DocID
	}
	name = escapeMarkers(strings.Join(strings.Fields(name), " "))
	if ts := displayTime(d.Updated); ts != "" {
		return name + " (" + ts + ")"
	}
	return name
}

func displayTime(updated string) string {
	t, ok := parseUpdated(updated)
	if !ok {
		return strings.TrimSpace(updated)
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncateWithEllipsis(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return truncateRunes(s, max-3) + "..."
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
