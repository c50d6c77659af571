package app

import (
	"errors"
	"fmt"

	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/lineindex"
	"github.com/kk-code-lab/rlog/internal/source"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

var encodingCycle = []textenc.Encoding{textenc.UTF8, textenc.UTF16LE, textenc.UTF16BE, textenc.ASCII}

func (app *Application) requestIndex(target int64, reload bool) bool {
	if !app.doc.Request(target, reload) {
		return false
	}
	app.indexPending = true
	app.state.Loading = true
	return true
}

// mergeIndex applies a build result and keeps the cursor on its line.
// Reloads always re-centre on the requested offset because filters or the
// encoding may have changed which rows exist.
func (app *Application) mergeIndex(res lineindex.Result) {
	out, err := app.doc.Merge(res)
	if err != nil {
		app.indexPending = false
		app.pendingJump = -1
		if errors.Is(err, source.ErrFileNotFound) {
			app.missing = true
		}
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	if !out.Applied {
		return
	}
	app.indexPending = false
	app.observedSize = max(app.observedSize, res.FileLength)
	if res.Reload {
		app.edgeTarget = -1
	}

	app.reduce(statepkg.IndexMergedAction{
		RowDelta:     out.RowDelta,
		Reset:        out.Reset || res.Reload,
		Lines:        app.doc.LineCount(),
		ViewpointRow: max(app.doc.RowOf(app.doc.Viewpoint()), 0),
	})

	if app.pendingJump >= 0 {
		offset := app.pendingJump
		if app.inIndex(offset) || app.jumpRequested {
			app.pendingJump = -1
			app.jumpRequested = false
			if row := app.doc.RowOf(offset); row >= 0 {
				app.reduce(statepkg.JumpToRowAction{Row: row})
			}
		} else {
			app.jumpRequested = app.requestIndex(offset, false)
		}
	}
	app.syncInfo()
}

func (app *Application) inIndex(offset int64) bool {
	if app.doc.LineCount() == 0 {
		return false
	}
	span := app.doc.Span()
	return offset >= span.Begin && offset <= span.End
}

// jumpTo moves the cursor to the line starting at offset, building the
// index around it first when needed.
func (app *Application) jumpTo(offset int64) {
	app.state.Follow = false
	if app.inIndex(offset) {
		app.pendingJump = -1
		app.reduce(statepkg.JumpToRowAction{Row: app.doc.RowOf(offset)})
		return
	}
	app.pendingJump = offset
	app.jumpRequested = app.requestIndex(offset, false)
}

// extendIndex asks for more lines once the view comes close to an edge of
// the index that is not an edge of the file.
func (app *Application) extendIndex() {
	if app.indexPending || app.missing || app.doc.LineCount() == 0 {
		return
	}
	s := app.state
	margin := s.ViewHeight()
	nearTop := s.TopRow < margin && !app.doc.AtStart()
	atEnd := app.doc.AtEnd() && app.observedSize <= app.doc.FileLength()
	nearBottom := s.TopRow+s.ViewHeight()+margin >= s.Lines && !atEnd
	if !nearTop && !nearBottom {
		return
	}
	target := app.cursorOffset()
	if target == app.edgeTarget {
		return
	}
	app.edgeTarget = target
	debuglog.Debugf("app: extend index around %d top=%v bottom=%v", target, nearTop, nearBottom)
	app.requestIndex(target, false)
}

// tick polls the file length for follow mode, truncation and files that
// disappear or come back.
func (app *Application) tick() bool {
	size, err := app.doc.Size()
	if err != nil {
		if app.missing {
			return false
		}
		app.missing = true
		app.reduce(statepkg.ErrorAction{Err: err})
		return true
	}
	if app.missing {
		app.missing = false
		app.observedSize = size
		app.reduce(statepkg.StatusAction{Text: "file is back"})
		app.requestIndex(0, true)
		return true
	}

	prev := app.observedSize
	app.observedSize = size
	switch {
	case size < prev:
		target := min(app.cursorOffset(), size)
		if app.state.Follow {
			target = size
		}
		app.reduce(statepkg.StatusAction{Text: "file truncated"})
		app.requestIndex(target, true)
		return true
	case size > prev:
		app.edgeTarget = -1
		if app.state.Follow && !app.indexPending && size > app.doc.FileLength() {
			app.requestIndex(size, false)
		}
		app.syncInfo()
		return true
	}
	return false
}

func (app *Application) reload() {
	app.reduce(statepkg.StatusAction{Text: "reloading"})
	target := app.cursorOffset()
	if app.state.Follow {
		if size, err := app.doc.Size(); err == nil {
			target = size
		}
	}
	app.requestIndex(target, true)
}

func (app *Application) toggleFollow() {
	app.state.Follow = !app.state.Follow
	if !app.state.Follow {
		return
	}
	size, err := app.doc.Size()
	if err != nil {
		app.reduce(statepkg.ErrorAction{Err: err})
		return
	}
	app.observedSize = max(app.observedSize, size)
	if app.doc.AtEnd() && size <= app.doc.FileLength() {
		app.reduce(statepkg.GoBottomAction{})
		return
	}
	app.requestIndex(size, false)
}

// cycleEncoding forces the next encoding and re-reads around the cursor.
func (app *Application) cycleEncoding() {
	next := encodingCycle[0]
	for i, enc := range encodingCycle {
		if enc == app.doc.Encoding() {
			next = encodingCycle[(i+1)%len(encodingCycle)]
			break
		}
	}
	cfg := app.doc.IndexConfig()
	cfg.Encoding = next
	cfg.AutoEncoding = false
	if app.doc.Reconfigure(cfg, app.cursorOffset()) {
		app.indexPending = true
		app.state.Loading = true
	}
	app.reduce(statepkg.StatusAction{Text: fmt.Sprintf("encoding %s", next)})
}
