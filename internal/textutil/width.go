package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	DefaultTabWidth = 4
	ellipsis        = "…"
)

// ExpandTabs replaces tabs with spaces up to the next tab stop.
func ExpandTabs(text string, tabWidth int) string {
	if tabWidth <= 0 || !strings.ContainsRune(text, '\t') {
		return text
	}

	var b strings.Builder
	column := 0
	for _, r := range text {
		if r == '\t' {
			spaces := tabWidth - column%tabWidth
			b.WriteString(strings.Repeat(" ", spaces))
			column += spaces
			continue
		}
		b.WriteRune(r)
		column += runewidth.RuneWidth(r)
	}
	return b.String()
}

// DisplayWidth is the number of terminal cells text occupies.
func DisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// Truncate shortens text to at most width cells, marking the cut with an
// ellipsis. A non-positive width disables truncation.
func Truncate(text string, width int) string {
	if width <= 0 || DisplayWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, ellipsis)
}

// Line makes one line of untrusted text printable within width cells.
func Line(text string, width int) string {
	return Truncate(ExpandTabs(SanitizeTerminalText(text), DefaultTabWidth), width)
}
