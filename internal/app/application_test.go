package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kk-code-lab/rlog/internal/config"
	"github.com/kk-code-lab/rlog/internal/marks"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/source"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
)

// tenLines is "line 0\n" .. "line 9\n", seven bytes per line.
func tenLines() string {
	var b strings.Builder
	for i := range 10 {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func openStore(t *testing.T) *marks.Store {
	t.Helper()
	store, err := marks.Open(filepath.Join(t.TempDir(), "marks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestApp(t *testing.T, path string, configure func(*Options)) *Application {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(60, 8)

	opts := Options{
		Config: config.Default(),
		Source: source.NewFile(path),
		Paths:  []string{path},
		Start:  -1,
	}
	if configure != nil {
		configure(&opts)
	}
	app, err := newApplication(screen, opts)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	waitIdle(t, app)
	return app
}

// waitIdle runs the loop's share of the work until no build, search or
// export is outstanding.
func waitIdle(t *testing.T, app *Application) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		app.processActions()
		if !app.indexPending && !app.state.Searching && !app.exporting {
			return
		}
		select {
		case ev := <-app.events:
			app.handleEvent(ev)
		case <-deadline:
			t.Fatalf("timed out: indexPending=%v searching=%v exporting=%v",
				app.indexPending, app.state.Searching, app.exporting)
		}
	}
}

func dispatch(t *testing.T, app *Application, actions ...statepkg.Action) {
	t.Helper()
	for _, action := range actions {
		app.handleAction(action)
		app.processActions()
	}
	waitIdle(t, app)
}

func typePrompt(t *testing.T, app *Application, kind statepkg.PromptKind, text string) {
	t.Helper()
	actions := []statepkg.Action{statepkg.PromptStartAction{Kind: kind}}
	for _, r := range text {
		actions = append(actions, statepkg.PromptCharAction{Char: r})
	}
	actions = append(actions, statepkg.PromptSubmitAction{})
	dispatch(t, app, actions...)
}

func screenRow(app *Application, y int) string {
	w, _ := app.screen.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := app.screen.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

func TestApplicationOpensAtTop(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	if app.state.Lines != 10 || app.state.CursorRow != 0 {
		t.Fatalf("lines=%d cursor=%d want 10, 0", app.state.Lines, app.state.CursorRow)
	}
	if app.state.Encoding != "utf-8" || app.state.Delimiter != "\n" {
		t.Fatalf("encoding=%q delimiter=%q", app.state.Encoding, app.state.Delimiter)
	}
	if app.state.FileLength != 70 || app.state.Loading {
		t.Fatalf("length=%d loading=%v want 70, false", app.state.FileLength, app.state.Loading)
	}

	app.render()
	if got := screenRow(app, 0); !strings.Contains(got, "line 0") {
		t.Fatalf("row 0 = %q want line 0", got)
	}
	if got := screenRow(app, 7); !strings.Contains(got, "utf-8 LF") {
		t.Fatalf("status = %q want utf-8 LF", got)
	}
}

func TestApplicationSearch(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	typePrompt(t, app, statepkg.PromptSearchForward, "line 7")
	if app.state.CursorRow != 7 {
		t.Fatalf("cursor = %d want 7", app.state.CursorRow)
	}
	if app.state.Match == nil || app.state.Match.String() != "line 7" {
		t.Fatalf("match pattern = %v", app.state.Match)
	}

	dispatch(t, app, statepkg.GoTopAction{})
	typePrompt(t, app, statepkg.PromptSearchForward, "line")
	if app.state.CursorRow != 0 {
		t.Fatalf("submit should match the current line, cursor = %d", app.state.CursorRow)
	}
	dispatch(t, app, statepkg.SearchNextAction{})
	if app.state.CursorRow != 1 {
		t.Fatalf("after n cursor = %d want 1", app.state.CursorRow)
	}
	dispatch(t, app, statepkg.SearchNextAction{Reverse: true})
	if app.state.CursorRow != 0 {
		t.Fatalf("after N cursor = %d want 0", app.state.CursorRow)
	}
}

func TestApplicationSearchNotFound(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	typePrompt(t, app, statepkg.PromptSearchForward, "zzz")
	if app.state.Status != "pattern not found: zzz" {
		t.Fatalf("status = %q", app.state.Status)
	}
	if app.state.Searching || app.state.CursorRow != 0 {
		t.Fatalf("searching=%v cursor=%d", app.state.Searching, app.state.CursorRow)
	}

	app.state.SearchQuery = ""
	dispatch(t, app, statepkg.SearchNextAction{})
	if app.state.Status != "no previous search" {
		t.Fatalf("status = %q", app.state.Status)
	}
}

func TestApplicationFilters(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	dispatch(t, app, statepkg.FilterAddAction{Query: "line 3", Action: pattern.Reject})
	if app.state.Lines != 9 {
		t.Fatalf("lines after reject = %d want 9", app.state.Lines)
	}
	if !reflect.DeepEqual(app.state.Filters, []string{"-line 3"}) {
		t.Fatalf("filters = %v", app.state.Filters)
	}

	dispatch(t, app, statepkg.FilterAddAction{Query: "line", Action: pattern.Reject})
	if app.state.Lines != 0 {
		t.Fatalf("lines after rejecting everything = %d want 0", app.state.Lines)
	}

	// the newest filter decides first
	dispatch(t, app, statepkg.FilterAddAction{Query: "line 1", Action: pattern.Keep})
	if app.state.Lines != 1 {
		t.Fatalf("lines after keep = %d want 1", app.state.Lines)
	}
	if !reflect.DeepEqual(app.state.Filters, []string{"+line 1", "-line", "-line 3"}) {
		t.Fatalf("filters = %v", app.state.Filters)
	}

	dispatch(t, app, statepkg.FilterPopAction{}, statepkg.FilterPopAction{})
	if app.state.Lines != 9 || !reflect.DeepEqual(app.state.Filters, []string{"-line 3"}) {
		t.Fatalf("after pop lines=%d filters=%v", app.state.Lines, app.state.Filters)
	}

	dispatch(t, app, statepkg.FilterClearAction{})
	if app.state.Lines != 10 || len(app.state.Filters) != 0 {
		t.Fatalf("after clear lines=%d filters=%v", app.state.Lines, app.state.Filters)
	}

	dispatch(t, app, statepkg.FilterPopAction{})
	if app.state.Status != "no filters" {
		t.Fatalf("status = %q", app.state.Status)
	}
}

func TestApplicationGoto(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	tests := []struct {
		target string
		row    int
	}{
		{"3", 2},
		{"@35", 5},
		{"@0x0e", 2},
		{"90%", 9},
		{"0%", 0},
	}
	for _, tt := range tests {
		dispatch(t, app, statepkg.GotoAction{Target: tt.target})
		if app.state.CursorRow != tt.row {
			t.Fatalf("goto %q: cursor = %d want %d", tt.target, app.state.CursorRow, tt.row)
		}
	}

	dispatch(t, app, statepkg.GotoAction{Target: "nope"})
	if app.state.LastError == nil {
		t.Fatalf("expected error for invalid target")
	}
}

func TestParseGoto(t *testing.T) {
	tests := []struct {
		text    string
		want    gotoSpec
		wantErr bool
	}{
		{"12", gotoSpec{row: 11, byRow: true}, false},
		{" 50% ", gotoSpec{offset: 500}, false},
		{"@250", gotoSpec{offset: 250}, false},
		{"@5000", gotoSpec{offset: 1000}, false},
		{"0", gotoSpec{}, true},
		{"150%", gotoSpec{}, true},
		{"@-1", gotoSpec{}, true},
		{"abc", gotoSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := parseGoto(tt.text, 1000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestApplicationMarks(t *testing.T) {
	path := writeLog(t, tenLines())
	store := openStore(t)
	app := newTestApp(t, path, func(o *Options) { o.Store = store })

	dispatch(t, app, statepkg.MarkToggleAction{})
	if len(app.state.Marks) != 1 || app.state.Marks[0].Offset != 0 {
		t.Fatalf("marks = %+v", app.state.Marks)
	}

	dispatch(t, app,
		statepkg.LineDownAction{}, statepkg.LineDownAction{}, statepkg.LineDownAction{},
		statepkg.MarkLabelAction{Label: "three"},
	)
	if len(app.state.Marks) != 2 || app.state.Marks[1].Offset != 21 || app.state.Marks[1].Label != "three" {
		t.Fatalf("marks = %+v", app.state.Marks)
	}

	dispatch(t, app, statepkg.GoTopAction{}, statepkg.MarkNextAction{})
	if app.state.CursorRow != 3 || app.state.Status != "mark: three" {
		t.Fatalf("cursor=%d status=%q", app.state.CursorRow, app.state.Status)
	}

	dispatch(t, app, statepkg.MarkToggleAction{})
	if len(app.state.Marks) != 1 {
		t.Fatalf("marks after toggle off = %+v", app.state.Marks)
	}
	dispatch(t, app, statepkg.MarkNextAction{})
	if app.state.Status != "no more marks" {
		t.Fatalf("status = %q", app.state.Status)
	}

	stored, err := store.Marks(marks.Key(path))
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored marks = %+v err=%v", stored, err)
	}
}

func TestApplicationMarksDisabled(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	dispatch(t, app, statepkg.MarkToggleAction{})
	if app.state.Status != "marks are disabled" {
		t.Fatalf("status = %q", app.state.Status)
	}
}

func TestApplicationExportSelection(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)
	out := filepath.Join(t.TempDir(), "out.txt")

	dispatch(t, app,
		statepkg.LineDownAction{},
		statepkg.SelectToggleAction{},
		statepkg.LineDownAction{},
		statepkg.ExportAction{Path: out},
	)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "line 1\nline 2\n" {
		t.Fatalf("export = %q", data)
	}
	if want := "exported 2 lines to " + out; app.state.Status != want {
		t.Fatalf("status = %q want %q", app.state.Status, want)
	}
}

func TestApplicationExportWholeFile(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)
	out := filepath.Join(t.TempDir(), "all.txt")

	dispatch(t, app, statepkg.ExportAction{Path: out})
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != tenLines() {
		t.Fatalf("export = %q", data)
	}
}

func TestApplicationFollowsGrowth(t *testing.T) {
	path := writeLog(t, tenLines())
	app := newTestApp(t, path, func(o *Options) { o.Follow = true })

	if app.state.CursorRow != 9 {
		t.Fatalf("follow should start at the last line, cursor = %d", app.state.CursorRow)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("line 10\nline 11\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	if !app.tick() {
		t.Fatalf("tick should notice the growth")
	}
	waitIdle(t, app)
	if app.state.Lines != 12 || app.state.CursorRow != 11 {
		t.Fatalf("lines=%d cursor=%d want 12, 11", app.state.Lines, app.state.CursorRow)
	}
	if app.state.FileLength != 86 {
		t.Fatalf("length = %d want 86", app.state.FileLength)
	}

	dispatch(t, app, statepkg.LineUpAction{})
	if app.state.Follow {
		t.Fatalf("moving up should stop following")
	}
}

func TestApplicationTruncatedFile(t *testing.T) {
	path := writeLog(t, tenLines())
	app := newTestApp(t, path, nil)

	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !app.tick() {
		t.Fatalf("tick should notice the truncation")
	}
	waitIdle(t, app)
	if app.state.Lines != 2 || app.state.Status != "file truncated" {
		t.Fatalf("lines=%d status=%q", app.state.Lines, app.state.Status)
	}
}

func TestApplicationMissingFileComesBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.log")
	app := newTestApp(t, path, nil)

	if !errors.Is(app.state.LastError, source.ErrFileNotFound) {
		t.Fatalf("LastError = %v want ErrFileNotFound", app.state.LastError)
	}
	if app.tick() {
		t.Fatalf("tick should stay quiet while the file is missing")
	}

	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !app.tick() {
		t.Fatalf("tick should notice the file")
	}
	waitIdle(t, app)
	if app.state.Lines != 1 || app.state.Status != "file is back" {
		t.Fatalf("lines=%d status=%q", app.state.Lines, app.state.Status)
	}
}

func TestApplicationRemembersPosition(t *testing.T) {
	path := writeLog(t, tenLines())
	store := openStore(t)
	if err := store.SaveViewpoint(marks.Key(path), 35, 70); err != nil {
		t.Fatalf("SaveViewpoint: %v", err)
	}

	app := newTestApp(t, path, func(o *Options) { o.Store = store })
	if app.state.CursorRow != 5 {
		t.Fatalf("cursor = %d want 5", app.state.CursorRow)
	}

	dispatch(t, app, statepkg.LineDownAction{})
	app.savePosition()
	pos, ok, err := store.Viewpoint(marks.Key(path))
	if err != nil || !ok || pos.Offset != 42 || pos.Size != 70 {
		t.Fatalf("position = %+v ok=%v err=%v", pos, ok, err)
	}
}

func TestApplicationExtendsIndexNearEdge(t *testing.T) {
	var b strings.Builder
	for i := range 200 {
		fmt.Fprintf(&b, "line %03d\n", i)
	}
	app := newTestApp(t, writeLog(t, b.String()), func(o *Options) {
		o.Config.BufferSize = 64
		o.Config.WindowBytes = 64
	})

	if app.state.Lines == 0 || app.state.Lines >= 200 || app.doc.AtEnd() {
		t.Fatalf("expected a partial index, lines=%d", app.state.Lines)
	}
	before := app.doc.Span()

	dispatch(t, app, statepkg.GoBottomAction{})
	offset := app.cursorOffset()
	app.extendIndex()
	waitIdle(t, app)

	if app.doc.Span().End <= before.End {
		t.Fatalf("index did not grow: before=%v after=%v", before, app.doc.Span())
	}
	if app.cursorOffset() != offset {
		t.Fatalf("cursor moved from %d to %d", offset, app.cursorOffset())
	}
}

func TestApplicationCyclesEncoding(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	dispatch(t, app, statepkg.EncodingCycleAction{})
	if app.state.Encoding != "utf-16le" || app.state.Status != "encoding utf-16le" {
		t.Fatalf("encoding=%q status=%q", app.state.Encoding, app.state.Status)
	}
	dispatch(t, app, statepkg.EncodingCycleAction{})
	if app.state.Encoding != "utf-16be" {
		t.Fatalf("encoding = %q want utf-16be", app.state.Encoding)
	}
}

func TestApplicationMouseWheel(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	app.handleEvent(tcell.NewEventMouse(0, 0, tcell.WheelDown, tcell.ModNone))
	if app.state.CursorRow != wheelLines {
		t.Fatalf("cursor = %d want %d", app.state.CursorRow, wheelLines)
	}
	app.handleEvent(tcell.NewEventMouse(0, 0, tcell.WheelUp, tcell.ModNone))
	if app.state.CursorRow != 0 {
		t.Fatalf("cursor = %d want 0", app.state.CursorRow)
	}
}

func TestRunQuitsOnKey(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	done := make(chan struct{})
	go func() {
		app.Run()
		close(done)
	}()
	if err := app.screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)); err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after q")
	}
}

func TestApplicationResize(t *testing.T) {
	app := newTestApp(t, writeLog(t, tenLines()), nil)

	app.handleEvent(tcell.NewEventResize(80, 20))
	app.processActions()
	if app.state.ScreenWidth != 80 || app.state.ScreenHeight != 20 {
		t.Fatalf("screen = %dx%d want 80x20", app.state.ScreenWidth, app.state.ScreenHeight)
	}
	line, err := app.doc.ReadLine(9)
	if err != nil || line.Text("") != "line 9" {
		t.Fatalf("ReadLine after resize = %q, %v", line.Text(""), err)
	}
}
