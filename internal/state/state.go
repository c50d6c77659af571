package state

import (
	"sort"

	"github.com/kk-code-lab/rlog/internal/pattern"
)

// PromptKind says what the text typed at the bottom line is for.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptSearchForward
	PromptSearchBackward
	PromptFilterKeep
	PromptFilterReject
	PromptGoto
	PromptExport
	PromptMarkLabel
)

// Label is the prefix shown in front of the prompt text.
func (k PromptKind) Label() string {
	switch k {
	case PromptSearchForward:
		return "/"
	case PromptSearchBackward:
		return "?"
	case PromptFilterKeep:
		return "keep: "
	case PromptFilterReject:
		return "reject: "
	case PromptGoto:
		return "goto: "
	case PromptExport:
		return "export to: "
	case PromptMarkLabel:
		return "mark: "
	default:
		return ""
	}
}

// Mark is a bookmarked line as the viewer shows it.
type Mark struct {
	ID     int64
	Offset int64
	Label  string
}

// AppState is the viewer state. Rows are indexes into the line index and
// shift whenever a merge adds or trims lines in front of them.
type AppState struct {
	Title        string
	ScreenWidth  int
	ScreenHeight int

	Lines      int
	TopRow     int
	CursorRow  int
	LeftColumn int
	// Anchor is the other end of the selection, -1 when nothing is selected.
	Anchor int

	Follow  bool
	Loading bool

	Prompt       PromptKind
	PromptText   []rune
	PromptCursor int

	SearchQuery    string
	SearchBackward bool
	SearchRegex    bool
	Searching      bool
	SearchScanned  int64
	SearchTotal    int64

	// Match is the active search pattern, drawn over visible lines.
	Match pattern.Pattern

	Filters     []string
	Marks       []Mark
	HelpVisible bool

	// Shown in the status line; refreshed by the application.
	Path         string
	Encoding     string
	Delimiter    string
	CursorOffset int64
	FileLength   int64

	Status    string
	LastError error

	dispatch func(Action)
}

// NewAppState returns an empty viewer state.
func NewAppState(title string) *AppState {
	return &AppState{Title: title, Anchor: -1}
}

// SetDispatch installs the sink for actions the reducer emits.
func (s *AppState) SetDispatch(fn func(Action)) {
	s.dispatch = fn
}

func (s *AppState) emit(action Action) {
	if s.dispatch != nil {
		s.dispatch(action)
	}
}

// ViewHeight is the number of text rows; the last screen line is the
// status or prompt line.
func (s *AppState) ViewHeight() int {
	return max(s.ScreenHeight-1, 1)
}

// Selection returns the selected rows, inclusive.
func (s *AppState) Selection() (first, last int, ok bool) {
	if s.Anchor < 0 {
		return 0, 0, false
	}
	return min(s.Anchor, s.CursorRow), max(s.Anchor, s.CursorRow), true
}

func (s *AppState) Selected(row int) bool {
	first, last, ok := s.Selection()
	return ok && row >= first && row <= last
}

func (s *AppState) PromptString() string {
	return string(s.PromptText)
}

// MarkAt returns the mark on the line starting at offset.
func (s *AppState) MarkAt(offset int64) (Mark, bool) {
	i := sort.Search(len(s.Marks), func(i int) bool { return s.Marks[i].Offset >= offset })
	if i < len(s.Marks) && s.Marks[i].Offset == offset {
		return s.Marks[i], true
	}
	return Mark{}, false
}

// NextMark returns the first mark after offset, or before it when reverse.
func (s *AppState) NextMark(offset int64, reverse bool) (Mark, bool) {
	if reverse {
		i := sort.Search(len(s.Marks), func(i int) bool { return s.Marks[i].Offset >= offset })
		if i == 0 {
			return Mark{}, false
		}
		return s.Marks[i-1], true
	}
	i := sort.Search(len(s.Marks), func(i int) bool { return s.Marks[i].Offset > offset })
	if i == len(s.Marks) {
		return Mark{}, false
	}
	return s.Marks[i], true
}

func (s *AppState) clampRows() {
	s.CursorRow = clamp(s.CursorRow, 0, s.Lines-1)
	s.TopRow = clamp(s.TopRow, 0, max(s.Lines-s.ViewHeight(), 0))
	if s.Anchor >= s.Lines {
		s.Anchor = s.Lines - 1
	}
}

// keepCursorVisible scrolls the minimum needed to show the cursor.
func (s *AppState) keepCursorVisible() {
	s.clampRows()
	h := s.ViewHeight()
	if s.CursorRow < s.TopRow {
		s.TopRow = s.CursorRow
	}
	if s.CursorRow >= s.TopRow+h {
		s.TopRow = s.CursorRow - h + 1
	}
	s.clampRows()
}

// centerCursor puts the cursor in the middle of the view.
func (s *AppState) centerCursor() {
	s.clampRows()
	s.TopRow = s.CursorRow - s.ViewHeight()/2
	s.clampRows()
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
