package render

import (
	"github.com/gdamore/tcell/v2"
	textutil "github.com/kk-code-lab/rlog/internal/textutil"
)

var helpLines = []string{
	"j k ↑ ↓      line down / up",
	"space b      page down / up",
	"d u          half page down / up",
	"g G          first / last line",
	"← → 0        scroll left / right / reset",
	"/ ?          search forward / backward",
	"n N          next / previous match",
	"R            toggle regex search",
	"& !          keep / reject lines matching",
	"x X          drop newest / all filters",
	":            goto row, N% or @offset",
	"v            start / clear selection",
	"e            export selection (or file)",
	"m M          toggle mark / labelled mark",
	"] [          next / previous mark",
	"F            follow the end of the file",
	"E            next encoding",
	"r ctrl-l     reload",
	"q            quit",
}

func (r *Renderer) drawHelp(w, h int) {
	width := 0
	for _, line := range helpLines {
		width = max(width, textutil.DisplayWidth(line))
	}
	width += 4
	height := len(helpLines) + 2
	x0 := max((w-width)/2, 0)
	y0 := max((h-height)/2, 0)
	style := tcell.StyleDefault.Background(r.theme.StatusBg).Foreground(r.theme.StatusFg)

	for y := y0; y < y0+height && y < h; y++ {
		for x := x0; x < x0+width && x < w; x++ {
			r.screen.SetContent(x, y, ' ', nil, style)
		}
	}
	for i, line := range helpLines {
		y := y0 + 1 + i
		if y >= h {
			break
		}
		r.drawText(x0+2, y, min(width-4, w-x0-2), line, style)
	}
}
