package rag_service

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}\x{0085}]+`)
	nonPrintable  = regexp.MustCompile(`[^\x20-\x7E]+`)
)

// minLineWords is the word count below which a line near the page edges is
// treated as a header, footer or page number.
const minLineWords = 3

// CleanText normalizes the raw text of one extracted page. It returns an
// empty string when nothing substantive is left.
func CleanText(raw string) string {
	text := whitespaceRun.ReplaceAllString(raw, " ")
	text = nonPrintable.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		nearEdge := i < 2 || i > len(lines)-3
		if nearEdge && len(strings.Fields(line)) < minLineWords {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, " "))
}
