package app

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/kk-code-lab/rlog/internal/config"
	"github.com/kk-code-lab/rlog/internal/logview"
	"github.com/kk-code-lab/rlog/internal/marks"
	"github.com/kk-code-lab/rlog/internal/search"
	"github.com/kk-code-lab/rlog/internal/source"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
	inputui "github.com/kk-code-lab/rlog/internal/ui/input"
	renderui "github.com/kk-code-lab/rlog/internal/ui/render"
)

// Options describe what the viewer opens.
type Options struct {
	Config config.Config
	Source source.Source
	// Paths are the files behind Source; they key marks and positions.
	Paths []string
	// Store is optional. Without it marks and positions are not kept.
	Store  *marks.Store
	Follow bool
	// Start is the offset to open at. Negative means the remembered
	// position, or the top of the file.
	Start int64
}

// Application represents the running viewer.
type Application struct {
	screen   tcell.Screen
	state    *statepkg.AppState
	reducer  *statepkg.StateReducer
	renderer *renderui.Renderer
	input    *inputui.InputHandler
	actionCh chan statepkg.Action
	// events carries results from background builds, searches and exports.
	events chan tcell.Event
	ctx    context.Context
	cancel context.CancelFunc

	cfg         config.Config
	doc         *logview.Document
	searcher    *search.Searcher
	searchToken int
	store       *marks.Store
	storeKey    string

	closed        bool
	shouldQuit    bool
	indexPending  bool
	pendingJump   int64
	jumpRequested bool
	// edgeTarget is the last offset the index was extended around.
	edgeTarget   int64
	observedSize int64
	missing      bool
	exporting    bool
}

// Close cleans up resources.
func (app *Application) Close() error {
	if app.closed {
		return nil
	}
	app.closed = true
	app.cancel()
	app.searcher.Cancel()
	err := app.doc.Close()
	app.screen.Fini()
	return err
}

