package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxDocumentTextSize caps the normalized text kept per knowledge document (1MB)
const MaxDocumentTextSize = 1024 * 1024

// NormalizeText removes null bytes, collapses runs of horizontal whitespace,
// keeps at most one blank line between paragraphs and trims the result.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var result strings.Builder
	result.Grow(len(text))
	newlines := 0
	lastWasSpace := false

	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			lastWasSpace = false
		case unicode.IsSpace(r):
			lastWasSpace = true
		default:
			if newlines > 0 {
				if newlines > 2 {
					newlines = 2
				}
				if result.Len() > 0 {
					result.WriteString(strings.Repeat("\n", newlines))
				}
				newlines = 0
			} else if lastWasSpace && result.Len() > 0 {
				result.WriteRune(' ')
			}
			lastWasSpace = false
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateText cuts text to at most maxBytes without splitting a rune
func TruncateText(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... [Content truncated]"
}
