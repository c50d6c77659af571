package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/lineindex"
	"github.com/kk-code-lab/rlog/internal/logview"
	"github.com/kk-code-lab/rlog/internal/marks"
	"github.com/kk-code-lab/rlog/internal/search"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
	"github.com/kk-code-lab/rlog/internal/ui/input"
	renderui "github.com/kk-code-lab/rlog/internal/ui/render"
)

const (
	defaultFollowInterval = 500 * time.Millisecond
	wheelLines            = 3
	// the line cache holds at least this many screens of rows
	cacheScreens = 4
)

// NewApplication opens the terminal and the document described by opts.
func NewApplication(opts Options) (*Application, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	// Parse mouse sequences so wheel scrolling doesn't leak as key events.
	screen.EnableMouse()

	app, err := newApplication(screen, opts)
	if err != nil {
		screen.Fini()
		return nil, err
	}
	return app, nil
}

func newApplication(screen tcell.Screen, opts Options) (*Application, error) {
	if opts.Source == nil {
		return nil, errors.New("app: no source")
	}
	docOpts, err := logview.OptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	state := statepkg.NewAppState(opts.Source.Name())
	w, h := screen.Size()
	state.ScreenWidth = w
	state.ScreenHeight = h
	state.Follow = opts.Follow

	actionCh := make(chan statepkg.Action, 10)
	state.SetDispatch(func(action statepkg.Action) {
		select {
		case actionCh <- action:
		default:
			go func() { actionCh <- action }()
		}
	})

	renderer := renderui.NewRenderer(screen)
	renderer.SetHighlights(docOpts.Highlights)
	inputHandler := input.NewInputHandler(actionCh)
	inputHandler.SetState(state)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		screen:      screen,
		state:       state,
		reducer:     statepkg.NewStateReducer(),
		renderer:    renderer,
		input:       inputHandler,
		actionCh:    actionCh,
		events:      make(chan tcell.Event, 64),
		ctx:         ctx,
		cancel:      cancel,
		cfg:         opts.Config,
		searcher:    search.NewSearcher(),
		store:       opts.Store,
		storeKey:    marks.Key(opts.Paths...),
		pendingJump: -1,
		edgeTarget:  -1,
	}
	app.doc = logview.Open(opts.Source, docOpts, func(res lineindex.Result) {
		app.post(newIndexEvent(res))
	})
	for _, f := range app.doc.Filters() {
		state.Filters = append(state.Filters, filterLabel(f.Pattern.String(), f.Action))
	}

	app.requestIndex(app.startOffset(opts), true)
	app.loadMarks()
	app.syncInfo()
	return app, nil
}

// startOffset picks where the first build is centred.
func (app *Application) startOffset(opts Options) int64 {
	size, err := app.doc.Size()
	if err != nil {
		app.missing = true
		app.state.LastError = err
		return 0
	}
	app.observedSize = size
	switch {
	case opts.Follow:
		return size
	case opts.Start >= 0:
		return min(opts.Start, size)
	case app.store != nil && app.cfg.RememberPosition:
		pos, ok, err := app.store.Viewpoint(app.storeKey)
		if err != nil {
			debuglog.Debugf("app: remembered position: %v", err)
			return 0
		}
		// a shorter file was rotated or rewritten; the old offset means nothing
		if ok && pos.Offset <= size && pos.Size <= size {
			return pos.Offset
		}
	}
	return 0
}

// post hands a background result to the loop. It gives up once the
// application is closing.
func (app *Application) post(ev tcell.Event) {
	select {
	case app.events <- ev:
	case <-app.ctx.Done():
	}
}

func (app *Application) Run() {
	defer app.Close()

	app.render()

	eventChan := make(chan tcell.Event)
	go func() {
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-app.ctx.Done():
				return
			}
		}
	}()

	var sigContCh chan os.Signal
	if sigs := contSignals(); len(sigs) > 0 {
		sigContCh = make(chan os.Signal, 1)
		signal.Notify(sigContCh, sigs...)
		defer signal.Stop(sigContCh)
	}

	interval := app.cfg.FollowInterval.Std()
	if interval <= 0 {
		interval = defaultFollowInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !app.shouldQuit {
		renderPending := false
		select {
		case ev := <-eventChan:
			renderPending = app.handleEvent(ev)
		case ev := <-app.events:
			renderPending = app.handleEvent(ev)
		case action := <-app.actionCh:
			renderPending = app.handleAction(action)
		case <-ticker.C:
			renderPending = app.tick()
		case <-sigContCh:
			renderPending = app.resumeAfterStop()
		}

		if app.processActions() {
			renderPending = true
		}
		app.extendIndex()
		if renderPending && !app.shouldQuit {
			app.render()
		}
	}

	app.savePosition()
}

func (app *Application) render() {
	app.renderer.Render(app.state, app.doc)
}

func (app *Application) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		_, h := ev.Size()
		app.doc.ResizeCache(max(app.cfg.CacheSlots, cacheScreens*h))
		if !app.input.ProcessEvent(ev) {
			app.shouldQuit = true
		}
	case *tcell.EventKey:
		if !app.input.ProcessEvent(ev) {
			app.shouldQuit = true
		}
	case *tcell.EventMouse:
		app.handleMouse(ev)
	case *tcell.EventInterrupt:
		return true
	case *indexEvent:
		app.mergeIndex(ev.res)
	case *searchEvent:
		app.finishSearch(ev.res)
	case *progressEvent:
		if app.state.Searching {
			app.reduce(statepkg.SearchProgressAction{Scanned: ev.scanned, Total: ev.total})
		}
	case *exportEvent:
		app.finishExport(ev)
	default:
		return false
	}
	return true
}

// handleMouse scrolls with the wheel; clicks are ignored.
func (app *Application) handleMouse(ev *tcell.EventMouse) {
	var action statepkg.Action
	switch {
	case ev.Buttons()&tcell.WheelUp != 0:
		action = statepkg.LineUpAction{}
	case ev.Buttons()&tcell.WheelDown != 0:
		action = statepkg.LineDownAction{}
	default:
		return
	}
	for range wheelLines {
		app.reduce(action)
	}
	app.syncInfo()
}

func (app *Application) processActions() bool {
	changed := false
	for {
		select {
		case action := <-app.actionCh:
			if app.handleAction(action) {
				changed = true
			}
		default:
			return changed
		}
	}
}

func (app *Application) handleAction(action statepkg.Action) bool {
	if action == nil {
		return false
	}

	switch a := action.(type) {
	case statepkg.QuitAction:
		app.shouldQuit = true
		return false
	case statepkg.SuspendAction:
		app.suspendToShell()
		app.resumeAfterStop()
	case statepkg.SearchSubmitAction:
		app.startSearch(a.Backward, false)
	case statepkg.SearchNextAction:
		app.searchNext(a.Reverse)
	case statepkg.SearchCancelAction:
		app.cancelSearch()
	case statepkg.FilterAddAction:
		app.addFilter(a.Query, a.Action)
	case statepkg.FilterPopAction:
		app.popFilter()
	case statepkg.FilterClearAction:
		app.clearFilters()
	case statepkg.GotoAction:
		app.gotoTarget(a.Target)
	case statepkg.ExportAction:
		app.export(a.Path)
	case statepkg.MarkToggleAction:
		app.toggleMark()
	case statepkg.MarkLabelAction:
		app.labelMark(a.Label)
	case statepkg.MarkNextAction:
		app.nextMark(a.Reverse)
	case statepkg.FollowToggleAction:
		app.toggleFollow()
	case statepkg.ReloadAction:
		app.reload()
	case statepkg.EncodingCycleAction:
		app.cycleEncoding()
	default:
		app.reduce(action)
	}
	app.syncInfo()
	return true
}

func (app *Application) reduce(action statepkg.Action) {
	if _, err := app.reducer.Reduce(app.state, action); err != nil {
		app.state.LastError = err
	}
}

// syncInfo copies what the status line shows from the document.
func (app *Application) syncInfo() {
	s := app.state
	s.Path = app.doc.Source().Name()
	if r, ok := app.doc.RangeAt(s.CursorRow); ok {
		s.CursorOffset = r.Begin
		s.Path = app.doc.PathAt(r.Begin)
	}
	s.FileLength = max(app.doc.FileLength(), app.observedSize)
	if app.doc.Detected() {
		s.Encoding = app.doc.Encoding().String()
		s.Delimiter = app.doc.Delimiter()
	}
	s.Loading = app.indexPending
}

// cursorOffset is the start of the line under the cursor, or the viewpoint
// while nothing is indexed.
func (app *Application) cursorOffset() int64 {
	if r, ok := app.doc.RangeAt(app.state.CursorRow); ok {
		return r.Begin
	}
	return app.doc.Viewpoint()
}

func (app *Application) savePosition() {
	if app.store == nil || !app.cfg.RememberPosition || app.doc.LineCount() == 0 {
		return
	}
	if err := app.store.SaveViewpoint(app.storeKey, app.cursorOffset(), app.observedSize); err != nil {
		debuglog.Debugf("app: save position: %v", err)
	}
}
