package siyuan

import (
	"strings"
	"testing"
)

func TestStripKramdownAttrs(t *testing.T) {
	in := strings.Join([]string{
		"# Title",
		"",
		"Some text with inline attrs{: id=\"20240101120000-abcdefg\"}",
		"{: id=\"20240101120000-hijklmn\" updated=\"20240102120000\"}",
		"- item one",
		"  {: id=\"20240101120000-opqrstu\"}",
		"last line",
	}, "\n")

	got := StripKramdownAttrs(in)
	if strings.Contains(got, "{:") {
		t.Errorf("attribute syntax survived:\n%s", got)
	}
	if !strings.Contains(got, "Some text with inline attrs") {
		t.Error("inline text lost")
	}
	if !strings.Contains(got, "- item one") || !strings.Contains(got, "last line") {
		t.Error("content lines lost")
	}
	// Standalone attribute lines disappear entirely.
	if n := len(strings.Split(got, "\n")); n != 5 {
		t.Errorf("line count = %d, want 5", n)
	}
}
