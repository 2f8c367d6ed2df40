package qa

import (
	"strconv"
	"strings"
)

// FormatContext renders retrieved passages as numbered sources separated by
// blank lines. Content is passed through verbatim.
func FormatContext(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Source ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(p.Content)
	}
	return b.String()
}

// CleanResponse flattens a raw completion into one paragraph and then breaks
// it again after every ". ".
//
// The sentence split is purely literal: "bijv. een" and "2. helft" are split
// too, while sentences ending in "!" or "?" are not.
func CleanResponse(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	cleaned := strings.Join(lines, " ")
	return strings.ReplaceAll(cleaned, ". ", ".\n\n")
}
