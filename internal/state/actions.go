package state

import "github.com/kk-code-lab/rlog/internal/pattern"

// Action is the base interface for all state mutations
type Action interface{}

// ===== NAVIGATION ACTIONS =====

type LineUpAction struct{}
type LineDownAction struct{}
type PageUpAction struct{}
type PageDownAction struct{}
type HalfPageUpAction struct{}
type HalfPageDownAction struct{}
type GoTopAction struct{}
type GoBottomAction struct{}
type ScrollLeftAction struct{}
type ScrollRightAction struct{}
type ScrollHomeAction struct{}

type ResizeAction struct {
	Width  int
	Height int
}

// JumpToRowAction moves the cursor to Row and centres it.
type JumpToRowAction struct {
	Row int
}

// ===== PROMPT ACTIONS =====

type PromptStartAction struct {
	Kind PromptKind
}
type PromptCharAction struct {
	Char rune
}
type PromptBackspaceAction struct{}
type PromptDeleteWordAction struct{}
type PromptMoveCursorAction struct {
	Direction string // "left", "right", "home", "end"
}
type PromptCancelAction struct{}
type PromptSubmitAction struct{}

// ===== EFFECT ACTIONS (executed by the application) =====

type SearchSubmitAction struct {
	Query    string
	Backward bool
}
type SearchNextAction struct {
	Reverse bool
}
type SearchCancelAction struct{}
type SearchToggleRegexAction struct{}

type FilterAddAction struct {
	Query  string
	Action pattern.Action
}
type FilterPopAction struct{}
type FilterClearAction struct{}

// GotoAction jumps to a row number, a percentage ("50%") or a byte offset
// ("@1024").
type GotoAction struct {
	Target string
}

type ExportAction struct {
	Path string
}

type MarkToggleAction struct{}
type MarkLabelAction struct {
	Label string
}
type MarkNextAction struct {
	Reverse bool
}

type SelectToggleAction struct{}
type FollowToggleAction struct{}
type ReloadAction struct{}

// EncodingCycleAction switches to the next encoding and re-reads the file.
type EncodingCycleAction struct{}

// ===== RESULT ACTIONS =====

// IndexMergedAction reports a merged index build.
type IndexMergedAction struct {
	RowDelta int
	Reset    bool
	Lines    int
	// ViewpointRow is where the cursor goes after a reset.
	ViewpointRow int
}

type SearchProgressAction struct {
	Scanned int64
	Total   int64
}

type SearchDoneAction struct {
	Found bool
	Err   error
}

type MarksLoadedAction struct {
	Marks []Mark
}

type StatusAction struct {
	Text string
}

type ErrorAction struct {
	Err error
}

// ===== APP ACTIONS =====

type HelpToggleAction struct{}
type HelpHideAction struct{}
type QuitAction struct{}
type SuspendAction struct{}
