package app

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/search"
	"github.com/kk-code-lab/rlog/internal/source"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
)

// ===== SEARCH =====

func (app *Application) startSearch(backward, skipCurrent bool) {
	pat, err := pattern.Compile(app.state.SearchQuery, pattern.Options{Regex: app.state.SearchRegex})
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	app.state.Match = pat
	opts, err := app.doc.FindOptions(pat, app.cursorOffset(), backward, skipCurrent)
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	app.state.Searching = true
	app.state.SearchScanned, app.state.SearchTotal = 0, 0
	app.state.Status = ""
	app.searchToken = app.searcher.Find(app.doc.Source(), opts,
		func(scanned, total int64) { app.post(newProgressEvent(scanned, total)) },
		func(res search.FindResult) { app.post(newSearchEvent(res)) },
	)
}

// searchNext repeats the last search from the line after the cursor.
// Reverse flips the direction the search was typed with.
func (app *Application) searchNext(reverse bool) {
	if app.state.SearchQuery == "" {
		app.reduce(statepkg.StatusAction{Text: "no previous search"})
		return
	}
	app.startSearch(app.state.SearchBackward != reverse, true)
}

func (app *Application) cancelSearch() {
	app.searcher.Cancel()
	app.state.Searching = false
	app.reduce(statepkg.StatusAction{Text: "search cancelled"})
}

func (app *Application) finishSearch(res search.FindResult) {
	if res.Token != app.searchToken {
		return
	}
	app.reduce(statepkg.SearchDoneAction{Found: res.Found, Err: res.Err})
	if res.Found {
		app.jumpTo(res.Match.Offset)
	}
}

// ===== FILTERS =====

func filterLabel(query string, action pattern.Action) string {
	if action == pattern.Reject {
		return "-" + query
	}
	return "+" + query
}

// addFilter puts the new filter in front so it wins over older ones; a
// keep filter appended after a reject could never take effect.
func (app *Application) addFilter(query string, action pattern.Action) {
	pat, err := pattern.Compile(query, pattern.Options{Regex: app.state.SearchRegex})
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	filters := append(pattern.FilterList{{Pattern: pat, Action: action}}, app.doc.Filters()...)
	app.applyFilters(filters)
	app.state.Filters = append([]string{filterLabel(query, action)}, app.state.Filters...)
}

// popFilter drops the most recently added filter.
func (app *Application) popFilter() {
	filters := app.doc.Filters()
	if len(filters) == 0 {
		app.reduce(statepkg.StatusAction{Text: "no filters"})
		return
	}
	app.applyFilters(slices.Clone(filters[1:]))
	if len(app.state.Filters) > 0 {
		app.state.Filters = app.state.Filters[1:]
	}
}

func (app *Application) clearFilters() {
	if len(app.doc.Filters()) == 0 {
		return
	}
	app.applyFilters(nil)
	app.state.Filters = nil
}

func (app *Application) applyFilters(filters pattern.FilterList) {
	if app.doc.SetFilters(filters, app.cursorOffset()) {
		app.indexPending = true
		app.state.Loading = true
	}
}

// ===== GOTO =====

// gotoSpec is a parsed goto target: a 1-based row of the index, or a byte
// offset given directly ("@1024") or as a share of the file ("50%").
type gotoSpec struct {
	row    int
	offset int64
	byRow  bool
}

func parseGoto(text string, size int64) (gotoSpec, error) {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasSuffix(text, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(text, "%")), 64)
		if err != nil || pct < 0 || pct > 100 {
			return gotoSpec{}, fmt.Errorf("invalid percentage %q", text)
		}
		return gotoSpec{offset: int64(float64(size) * pct / 100)}, nil
	case strings.HasPrefix(text, "@"):
		offset, err := strconv.ParseInt(strings.TrimSpace(text[1:]), 0, 64)
		if err != nil || offset < 0 {
			return gotoSpec{}, fmt.Errorf("invalid offset %q", text)
		}
		return gotoSpec{offset: min(offset, size)}, nil
	}
	row, err := strconv.Atoi(text)
	if err != nil || row < 1 {
		return gotoSpec{}, fmt.Errorf("invalid goto target %q", text)
	}
	return gotoSpec{row: row - 1, byRow: true}, nil
}

func (app *Application) gotoTarget(text string) {
	target, err := parseGoto(text, max(app.doc.FileLength(), app.observedSize))
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	if target.byRow {
		app.state.Follow = false
		app.reduce(statepkg.JumpToRowAction{Row: target.row})
		return
	}
	app.jumpTo(target.offset)
}

// ===== EXPORT =====

// export writes the selection, or the whole file, to path in the background.
func (app *Application) export(path string) {
	if app.exporting {
		app.reduce(statepkg.StatusAction{Text: "export already running"})
		return
	}
	ranges := []scan.ByteRange{{Begin: 0, End: max(app.doc.FileLength(), app.observedSize)}}
	if first, last, ok := app.state.Selection(); ok {
		from, okFrom := app.doc.RangeAt(first)
		to, okTo := app.doc.RangeAt(last)
		if okFrom && okTo {
			ranges = []scan.ByteRange{{Begin: from.Begin, End: to.End}}
		}
	}
	rowDelim, colDelim := app.cfg.ExportDelimiters()
	opts, err := app.doc.ExportOptions(ranges, rowDelim, colDelim)
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	opts.FileEnd = max(opts.FileEnd, ranges[0].End)

	app.exporting = true
	app.reduce(statepkg.StatusAction{Text: "exporting to " + path})
	src := app.doc.Source()
	go func() {
		stats, err := exportTo(app.ctx, src, opts, path)
		app.post(newExportEvent(path, stats, err))
	}()
}

func exportTo(ctx context.Context, src source.Source, opts search.ExportOptions, path string) (search.ExportStats, error) {
	stream, err := src.Open()
	if err != nil {
		return search.ExportStats{}, err
	}
	defer stream.Close()

	f, err := os.Create(path)
	if err != nil {
		return search.ExportStats{}, fmt.Errorf("create export file: %w", err)
	}
	stats, err := search.Export(ctx, stream, opts, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return stats, err
}

func (app *Application) finishExport(ev *exportEvent) {
	app.exporting = false
	if ev.err != nil {
		app.reduce(statepkg.ErrorAction{Err: fmt.Errorf("export to %s: %w", ev.path, ev.err)})
		return
	}
	app.reduce(statepkg.StatusAction{Text: fmt.Sprintf("exported %d lines to %s", ev.stats.Lines, ev.path)})
}

// ===== MARKS =====

func (app *Application) loadMarks() {
	if app.store == nil {
		return
	}
	list, err := app.store.Marks(app.storeKey)
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	loaded := make([]statepkg.Mark, 0, len(list))
	for _, m := range list {
		loaded = append(loaded, statepkg.Mark{ID: m.ID, Offset: m.Offset, Label: m.Label})
	}
	app.reduce(statepkg.MarksLoadedAction{Marks: loaded})
}

func (app *Application) markTarget() (int64, bool) {
	if app.store == nil {
		app.reduce(statepkg.StatusAction{Text: "marks are disabled"})
		return 0, false
	}
	r, ok := app.doc.RangeAt(app.state.CursorRow)
	return r.Begin, ok
}

func (app *Application) toggleMark() {
	offset, ok := app.markTarget()
	if !ok {
		return
	}
	var err error
	if m, marked := app.state.MarkAt(offset); marked {
		err = app.store.DeleteMark(app.storeKey, m.ID)
	} else {
		_, err = app.store.AddMark(app.storeKey, offset, "")
	}
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	app.loadMarks()
}

func (app *Application) labelMark(label string) {
	offset, ok := app.markTarget()
	if !ok {
		return
	}
	if _, err := app.store.AddMark(app.storeKey, offset, label); err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	app.loadMarks()
}

func (app *Application) nextMark(reverse bool) {
	m, ok := app.state.NextMark(app.cursorOffset(), reverse)
	if !ok {
		app.reduce(statepkg.StatusAction{Text: "no more marks"})
		return
	}
	app.jumpTo(m.Offset)
	if m.Label != "" {
		app.reduce(statepkg.StatusAction{Text: "mark: " + m.Label})
	}
}
