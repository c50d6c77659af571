package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const DefaultTabWidth = 8

const ellipsis = "…"

// ExpandTabs replaces tab characters with spaces up to the next tab stop.
func ExpandTabs(text string, tabWidth int) string {
	if tabWidth <= 0 || !strings.ContainsRune(text, '\t') {
		return text
	}

	var builder strings.Builder
	column := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		if cluster == "\t" {
			spaces := tabWidth - (column % tabWidth)
			builder.WriteString(strings.Repeat(" ", spaces))
			column += spaces
			continue
		}
		builder.WriteString(cluster)
		column += clusterWidth(cluster, g.Width())
	}
	return builder.String()
}

// DisplayWidth reports how many terminal cells text occupies. Emoji
// sequences joined into one grapheme count once.
func DisplayWidth(text string) int {
	width := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		width += clusterWidth(g.Str(), g.Width())
	}
	return width
}

// TruncateToWidth cuts text to at most width cells, marking the cut with an
// ellipsis.
func TruncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if DisplayWidth(text) <= width {
		return text
	}
	if width <= 1 {
		return ellipsis
	}

	target := width - 1
	var builder strings.Builder
	current := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		w := clusterWidth(g.Str(), g.Width())
		if current+w > target {
			break
		}
		builder.WriteString(g.Str())
		current += w
	}
	builder.WriteString(ellipsis)
	return builder.String()
}

// SkipColumns drops the first cols cells of text for horizontal scrolling.
// A wide cluster straddling the cut is replaced by spaces.
func SkipColumns(text string, cols int) string {
	if cols <= 0 {
		return text
	}
	current := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		w := clusterWidth(g.Str(), g.Width())
		if current+w > cols {
			from, _ := g.Positions()
			pad := current + w - cols
			if current < cols {
				return strings.Repeat(" ", pad) + text[from+len(g.Str()):]
			}
			return text[from:]
		}
		current += w
	}
	return ""
}

func clusterWidth(cluster string, graphemeWidth int) int {
	if len([]rune(cluster)) == 1 {
		if w := runewidth.StringWidth(cluster); w > 0 {
			return w
		}
		return 1
	}
	if graphemeWidth <= 0 {
		return 1
	}
	return graphemeWidth
}

// ForEachCluster calls fn for every grapheme cluster of text with its byte
// offset and display width, stopping when fn returns false.
func ForEachCluster(text string, fn func(offset int, cluster string, width int) bool) {
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		from, _ := g.Positions()
		if !fn(from, g.Str(), clusterWidth(g.Str(), g.Width())) {
			return
		}
	}
}
