// Package cli provides shared formatting helpers for CLI output.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color constants.
const (
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
	Dim    = "\033[2m"
	Bold   = "\033[1m"
	Reset  = "\033[0m"
)

// boxWidth is the inner content width between the border characters.
const boxWidth = 44

// margin is the left indent for all formatted output.
const margin = "  "

// ShortenHome replaces the $HOME prefix with ~.
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// FormatNumber adds comma separators (1234 -> "1,234").
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return FormatNumber(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// Header prints a heavy-border box with a title. Used by status and
// doctor.
func Header(title string) {
	top := margin + "┏" + strings.Repeat("━", boxWidth) + "┓"
	bottom := margin + "┗" + strings.Repeat("━", boxWidth) + "┛"
	padded := padRight("  "+title, boxWidth)

	fmt.Println()
	fmt.Printf("%s%s%s\n", Cyan, top, Reset)
	fmt.Printf("%s%s┃%s┃%s\n", Cyan, margin, padded, Reset)
	fmt.Printf("%s%s%s\n", Cyan, bottom, Reset)
}

// Section prints a divider line: ── Name ─────────────────
func Section(name string) {
	prefix := "── " + name + " "
	remaining := boxWidth + 2 - runeLen(prefix)
	if remaining < 0 {
		remaining = 0
	}
	fmt.Printf("\n%s%s%s%s\n\n", margin, Cyan, prefix+strings.Repeat("─", remaining), Reset)
}

// Pass prints a green check line, with an optional dim detail.
func Pass(name, detail string) {
	if detail != "" {
		fmt.Printf("%s%s✓%s %s %s(%s)%s\n", margin, Green, Reset, name, Dim, detail, Reset)
		return
	}
	fmt.Printf("%s%s✓%s %s\n", margin, Green, Reset, name)
}

// Fail prints a red cross line, with an optional hint on the next line.
func Fail(name string, err error, hint string) {
	fmt.Printf("%s%s✗%s %s: %v\n", margin, Red, Reset, name, err)
	if hint != "" {
		fmt.Printf("%s  → %s\n", margin, hint)
	}
}

// Skip prints a dim skipped-check line with the reason.
func Skip(name, reason string) {
	fmt.Printf("%s%s○ %s: skipped (%s)%s\n", margin, Dim, name, reason, Reset)
}

// Footer prints the project footer in dim text.
func Footer() {
	fmt.Printf("\n%s%sgithub.com/dubuqingfeng/siyuan-openclaw-plugin%s\n\n", margin, Dim, Reset)
}

// padRight pads s with spaces to exactly width runes, truncating when
// it is longer.
func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		r := []rune(s)
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}

func runeLen(s string) int {
	return len([]rune(s))
}
