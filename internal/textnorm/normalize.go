// Package textnorm cleans up raw OCR output into a stable text shape.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize rewrites raw OCR text deterministically:
// line breaks become "\n", runs of 3+ newlines collapse to 2 (at most one
// blank line between paragraphs), each line is trimmed with interior space
// runs collapsed to one, and the whole result is trimmed. Idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		lines[i] = multiSpace.ReplaceAllString(line, " ")
	}
	text = strings.Join(lines, "\n")

	// Trimming lines can merge what were whitespace-only lines into fresh
	// newline runs, so collapse once more to keep Normalize idempotent.
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// WordCount counts non-empty whitespace-separated tokens in normalized text.
func WordCount(normalized string) int {
	return len(strings.Fields(normalized))
}
