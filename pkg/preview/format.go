// Package preview provides an interactive preview of the URLs a transform
// would replace, using a Bubble Tea TUI.
package preview

import (
	"fmt"
	"html"
	"strings"

	"github.com/lepinkainen/smart-url-view/pkg/extract"
)

// Item is one candidate URL found in the previewed content.
type Item struct {
	Match    extract.Match
	Internal bool
}

// Class returns "internal" or "external".
func (i Item) Class() string {
	if i.Internal {
		return "internal"
	}
	return "external"
}

// BuildItems pairs matches with their URL class.
func BuildItems(matches []extract.Match, isInternal func(string) bool) []Item {
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, Item{Match: m, Internal: isInternal(m.URL)})
	}
	return items
}

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := len(word)

		// If adding this word would exceed width, start a new line
		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		// Add space before word if not at start of line
		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		// Write the last line
		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}

// FormatCompactListItem formats a single candidate in compact list format
// Example: " 1. [external bare-paragraph] https://example.com/post"
func FormatCompactListItem(index int, item Item) string {
	url := item.Match.URL

	const maxURLLength = 90
	if len(url) > maxURLLength {
		url = url[:maxURLLength-3] + "..."
	}

	return fmt.Sprintf("%2d. [%-8s %-16s] %s", index+1, item.Class(), item.Match.Pattern, url)
}

// FormatDetailedItem formats a candidate with its matched markup and, when
// available, the card that replaces it.
func FormatDetailedItem(item Item, card string) string {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")
	b.WriteString(fmt.Sprintf("URL: %s\n", item.Match.URL))
	b.WriteString(fmt.Sprintf("Class: %s\n", item.Class()))
	b.WriteString(fmt.Sprintf("Pattern: %s\n", item.Match.Pattern))

	b.WriteString("\nCard text:\n")
	if card == "" {
		b.WriteString("(rendering...)\n")
	} else {
		b.WriteString(wrapText(CardText(card), 70))
		b.WriteString("\n")
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// FormatSource shows the matched span next to the replacement markup.
func FormatSource(item Item, card string) string {
	var b strings.Builder
	b.WriteString("Matched markup:\n")
	b.WriteString(wrapMarkup(item.Match.Span, 80))
	b.WriteString("\nCard markup:\n")
	if card == "" {
		b.WriteString("(rendering...)\n")
	} else {
		b.WriteString(wrapMarkup(card, 80))
	}
	return b.String()
}

// CardText returns the visible text of rendered card markup, elements
// separated by " | ".
func CardText(markup string) string {
	var parts []string
	for _, chunk := range strings.Split(markup, "<") {
		if i := strings.IndexByte(chunk, '>'); i >= 0 {
			chunk = chunk[i+1:]
		}
		if text := strings.TrimSpace(chunk); text != "" {
			parts = append(parts, html.UnescapeString(text))
		}
	}
	return strings.Join(parts, " | ")
}

// wrapMarkup wraps long lines at tag boundaries or spaces without touching
// short lines.
func wrapMarkup(markup string, width int) string {
	var result strings.Builder
	lines := strings.Split(markup, "\n")

	for _, line := range lines {
		if len(line) <= width {
			result.WriteString(line)
			result.WriteString("\n")
			continue
		}

		remaining := line
		for len(remaining) > width {
			breakPoint := width
			// Try to find a good break point (space, > or <)
			for i := width; i > width-20 && i > 0; i-- {
				if remaining[i] == ' ' || remaining[i] == '>' {
					breakPoint = i + 1
					break
				}
			}
			result.WriteString(remaining[:breakPoint])
			result.WriteString("\n")
			remaining = remaining[breakPoint:]
		}
		if remaining != "" {
			result.WriteString(remaining)
			result.WriteString("\n")
		}
	}

	return result.String()
}
