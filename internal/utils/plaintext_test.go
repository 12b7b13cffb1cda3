package utils

import (
	"strings"
	"testing"
)

func TestMarkdownToPlainText_Inline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"emphasis", "Some **bold** and _em_ text", "Some bold and em text"},
		{"heading", "## Opening hours", "Opening hours"},
		{"link", "See [our site](https://example.com).", "See our site (https://example.com)."},
		{"inline code", "Run `make build` now", "Run make build now"},
		{"autolink", "<https://example.com/a>", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownToPlainText(tt.in); got != tt.want {
				t.Errorf("MarkdownToPlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarkdownToPlainText_Blocks(t *testing.T) {
	in := "# Title\n\nIntro paragraph.\n\n- one\n- two\n  - nested\n\n---\n\n```\ncode line\n```\n"
	got := MarkdownToPlainText(in)

	for _, want := range []string{
		"Title\n\nIntro paragraph.",
		"• one\n• two\n  • nested",
		ThematicSeparator,
		"code line",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
	for _, marker := range []string{"#", "```", "- one", "**"} {
		if strings.Contains(got, marker) {
			t.Errorf("Expected markup %q to be stripped, got:\n%s", marker, got)
		}
	}
}

func TestMarkdownToPlainText_OrderedList(t *testing.T) {
	got := MarkdownToPlainText("3. third\n4. fourth\n")
	if got != "3. third\n4. fourth" {
		t.Errorf("Unexpected ordered list rendering %q", got)
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  first\t\tline  \r\n\r\n\r\n\r\nsecond\x00 line\n"
	want := "first line\n\nsecond line"
	if got := NormalizeText(in); got != want {
		t.Errorf("NormalizeText() = %q, want %q", got, want)
	}
}

func TestTruncateText(t *testing.T) {
	if got := TruncateText("short", 10); got != "short" {
		t.Errorf("Expected untouched text, got %q", got)
	}
	got := TruncateText("ab€cd", 3)
	if !strings.HasPrefix(got, "ab\n") {
		t.Errorf("Expected cut before the multi-byte rune, got %q", got)
	}
}
