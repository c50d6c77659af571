package render

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/pattern"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
	textutil "github.com/kk-code-lab/rlog/internal/textutil"
)

const columnSeparator = " │ "

// Lines is the part of a document the renderer reads.
type Lines interface {
	LineCount() int
	ReadLine(row int) (logline.Line, error)
}

// Renderer handles all UI rendering
type Renderer struct {
	screen     tcell.Screen
	theme      ColorTheme
	highlights []tcell.Color
}

func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{
		screen: screen,
		theme:  GetColorTheme(),
	}
}

// SetHighlights resolves the colour of each highlight rule; unknown names
// fall back to the default colour.
func (r *Renderer) SetHighlights(list pattern.HighlightList) {
	r.highlights = r.highlights[:0]
	for _, h := range list {
		r.highlights = append(r.highlights, tcell.GetColor(h.Color))
	}
}

// Render draws the visible rows, the status line and overlays.
func (r *Renderer) Render(state *statepkg.AppState, lines Lines) {
	r.screen.Clear()
	w, h := r.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	viewHeight := max(h-1, 1)
	for y := 0; y < viewHeight && y < h; y++ {
		row := state.TopRow + y
		if lines == nil || row >= lines.LineCount() {
			r.drawText(0, y, w, "~", tcell.StyleDefault.Foreground(r.theme.FillerFg))
			continue
		}
		r.drawRow(state, lines, row, y, w)
	}

	if h > 1 {
		r.drawStatusLine(state, w, h-1)
	}
	if state.HelpVisible {
		r.drawHelp(w, h)
	}
	r.screen.Show()
}

func (r *Renderer) drawRow(state *statepkg.AppState, lines Lines, row, y, w int) {
	line, err := lines.ReadLine(row)
	if err != nil {
		r.drawText(0, y, w, fmt.Sprintf("! %v", err), tcell.StyleDefault.Foreground(r.theme.ErrorFg))
		return
	}

	base := tcell.StyleDefault.Foreground(r.theme.Foreground).Background(r.theme.Background)
	if line.Highlight >= 0 && line.Highlight < len(r.highlights) {
		base = base.Foreground(r.highlights[line.Highlight])
	}
	switch {
	case state.Selected(row):
		base = base.Background(r.theme.SelectionBg).Foreground(r.theme.SelectionFg)
	case row == state.CursorRow:
		base = base.Background(r.theme.CursorBg)
	}

	gutter := ' '
	if _, ok := state.MarkAt(line.Start); ok {
		gutter = '▌'
	}
	r.screen.SetContent(0, y, gutter, nil, base.Foreground(r.theme.MarkFg))

	text, separators := joinColumns(line.Columns)
	var spans []pattern.Span
	if state.Match != nil {
		spans = state.Match.Spans(text)
	}
	match := base.Background(r.theme.MatchBg).Foreground(r.theme.MatchFg)
	sep := base.Foreground(r.theme.ColumnSepFg)

	x := 1
	col := 0
	textutil.ForEachCluster(text, func(offset int, cluster string, width int) bool {
		if col < state.LeftColumn {
			col += width
			return true
		}
		if x+width > w {
			return false
		}
		style := base
		switch {
		case inSpans(spans, offset):
			style = match
		case inSpans(separators, offset):
			style = sep
		}
		runes := []rune(cluster)
		r.screen.SetContent(x, y, runes[0], runes[1:], style)
		for i := 1; i < width; i++ {
			r.screen.SetContent(x+i, y, ' ', nil, style)
		}
		x += width
		col += width
		return true
	})
	for ; x < w; x++ {
		r.screen.SetContent(x, y, ' ', nil, base)
	}
}

// joinColumns returns the display text and the byte spans of separators.
func joinColumns(columns []string) (string, []pattern.Span) {
	if len(columns) <= 1 {
		if len(columns) == 0 {
			return "", nil
		}
		return columns[0], nil
	}
	var b strings.Builder
	spans := make([]pattern.Span, 0, len(columns)-1)
	for i, c := range columns {
		if i > 0 {
			start := b.Len()
			b.WriteString(columnSeparator)
			spans = append(spans, pattern.Span{Start: start, End: b.Len()})
		}
		b.WriteString(c)
	}
	return b.String(), spans
}

func inSpans(spans []pattern.Span, offset int) bool {
	for _, s := range spans {
		if offset >= s.Start && offset < s.End {
			return true
		}
		if s.Start > offset {
			return false
		}
	}
	return false
}

func (r *Renderer) drawStatusLine(state *statepkg.AppState, w, y int) {
	style := tcell.StyleDefault.Background(r.theme.StatusBg).Foreground(r.theme.StatusFg)

	if state.Prompt != statepkg.PromptNone {
		style = tcell.StyleDefault.Foreground(r.theme.PromptFg)
		label := state.Prompt.Label()
		text := state.PromptString()
		r.drawText(0, y, w, label+text, style)
		cursor := textutil.DisplayWidth(label) + textutil.DisplayWidth(string(state.PromptText[:state.PromptCursor]))
		if cursor < w {
			r.screen.ShowCursor(cursor, y)
		}
		return
	}
	r.screen.HideCursor()

	left := FormatStatusLeft(state)
	right := FormatStatusRight(state)
	if state.LastError != nil {
		r.drawText(0, y, w, padRight(left, w), style)
		msg := " " + state.LastError.Error()
		r.drawText(textutil.DisplayWidth(left), y, w-textutil.DisplayWidth(left), msg, style.Foreground(r.theme.ErrorFg))
		return
	}
	r.drawText(0, y, w, composeStatus(left, right, w), style)
}

// composeStatus right-aligns right and truncates left when both do not fit.
func composeStatus(left, right string, w int) string {
	rw := textutil.DisplayWidth(right)
	if rw >= w {
		return textutil.TruncateToWidth(right, w)
	}
	left = textutil.TruncateToWidth(left, max(w-rw-1, 0))
	gap := w - rw - textutil.DisplayWidth(left)
	return left + strings.Repeat(" ", max(gap, 0)) + right
}

func padRight(s string, w int) string {
	if d := w - textutil.DisplayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func (r *Renderer) drawText(x, y, maxWidth int, text string, style tcell.Style) {
	if maxWidth <= 0 {
		return
	}
	text = textutil.TruncateToWidth(text, maxWidth)
	textutil.ForEachCluster(text, func(_ int, cluster string, width int) bool {
		runes := []rune(cluster)
		r.screen.SetContent(x, y, runes[0], runes[1:], style)
		for i := 1; i < width; i++ {
			r.screen.SetContent(x+i, y, ' ', nil, style)
		}
		x += width
		return true
	})
}
