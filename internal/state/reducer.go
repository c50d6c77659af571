package state

import (
	"unicode"

	"github.com/kk-code-lab/rlog/internal/pattern"
)

const horizontalStep = 8

// StateReducer applies view actions to AppState. Actions that need the
// document, the searcher or the mark store are left to the application.
type StateReducer struct{}

func NewStateReducer() *StateReducer {
	return &StateReducer{}
}

func (r *StateReducer) Reduce(state *AppState, action Action) (*AppState, error) {
	switch a := action.(type) {

	// ===== NAVIGATION =====

	case LineDownAction:
		r.moveCursor(state, 1)
	case LineUpAction:
		r.moveCursor(state, -1)
	case PageDownAction:
		r.scrollPage(state, state.ViewHeight())
	case PageUpAction:
		r.scrollPage(state, -state.ViewHeight())
	case HalfPageDownAction:
		r.scrollPage(state, max(state.ViewHeight()/2, 1))
	case HalfPageUpAction:
		r.scrollPage(state, -max(state.ViewHeight()/2, 1))
	case GoTopAction:
		state.Follow = false
		state.CursorRow = 0
		state.TopRow = 0
		state.clampRows()
	case GoBottomAction:
		state.CursorRow = state.Lines - 1
		state.keepCursorVisible()
	case ScrollRightAction:
		state.LeftColumn += horizontalStep
	case ScrollLeftAction:
		state.LeftColumn = max(state.LeftColumn-horizontalStep, 0)
	case ScrollHomeAction:
		state.LeftColumn = 0
	case JumpToRowAction:
		state.CursorRow = a.Row
		state.centerCursor()

	case ResizeAction:
		state.ScreenWidth = a.Width
		state.ScreenHeight = a.Height
		state.keepCursorVisible()

	// ===== PROMPT =====

	case PromptStartAction:
		state.Prompt = a.Kind
		state.PromptText = state.PromptText[:0]
		state.PromptCursor = 0
		state.LastError = nil
	case PromptCharAction:
		if state.Prompt == PromptNone {
			return state, nil
		}
		text := make([]rune, 0, len(state.PromptText)+1)
		text = append(text, state.PromptText[:state.PromptCursor]...)
		text = append(text, a.Char)
		text = append(text, state.PromptText[state.PromptCursor:]...)
		state.PromptText = text
		state.PromptCursor++
	case PromptBackspaceAction:
		if state.PromptCursor == 0 {
			if len(state.PromptText) == 0 {
				state.Prompt = PromptNone
			}
			return state, nil
		}
		state.PromptText = append(state.PromptText[:state.PromptCursor-1], state.PromptText[state.PromptCursor:]...)
		state.PromptCursor--
	case PromptDeleteWordAction:
		start := previousWordBoundary(state.PromptText, state.PromptCursor)
		state.PromptText = append(state.PromptText[:start], state.PromptText[state.PromptCursor:]...)
		state.PromptCursor = start
	case PromptMoveCursorAction:
		switch a.Direction {
		case "left":
			state.PromptCursor = max(state.PromptCursor-1, 0)
		case "right":
			state.PromptCursor = min(state.PromptCursor+1, len(state.PromptText))
		case "home":
			state.PromptCursor = 0
		case "end":
			state.PromptCursor = len(state.PromptText)
		}
	case PromptCancelAction:
		r.closePrompt(state)
	case PromptSubmitAction:
		r.submitPrompt(state)

	// ===== STATE-ONLY TOGGLES =====

	case SelectToggleAction:
		if state.Anchor >= 0 {
			state.Anchor = -1
		} else if state.Lines > 0 {
			state.Anchor = state.CursorRow
		}
	case SearchToggleRegexAction:
		state.SearchRegex = !state.SearchRegex
	case HelpToggleAction:
		state.HelpVisible = !state.HelpVisible
	case HelpHideAction:
		state.HelpVisible = false

	// ===== RESULTS =====

	case IndexMergedAction:
		r.applyMerge(state, a)
	case SearchProgressAction:
		state.Searching = true
		state.SearchScanned = a.Scanned
		state.SearchTotal = a.Total
	case SearchDoneAction:
		state.Searching = false
		state.SearchScanned, state.SearchTotal = 0, 0
		switch {
		case a.Err != nil:
			state.LastError = a.Err
		case !a.Found:
			state.Status = "pattern not found: " + state.SearchQuery
		default:
			state.Status = ""
		}
	case MarksLoadedAction:
		state.Marks = a.Marks
	case StatusAction:
		state.Status = a.Text
		state.LastError = nil
	case ErrorAction:
		state.LastError = a.Err
	}
	return state, nil
}

func (r *StateReducer) moveCursor(state *AppState, delta int) {
	if state.Lines == 0 {
		return
	}
	if delta < 0 {
		state.Follow = false
	}
	state.CursorRow += delta
	state.keepCursorVisible()
}

// scrollPage moves the view and the cursor together. Once the view hits
// an edge the cursor keeps moving on its own.
func (r *StateReducer) scrollPage(state *AppState, delta int) {
	if state.Lines == 0 {
		return
	}
	if delta < 0 {
		state.Follow = false
	}
	offset := state.CursorRow - state.TopRow
	prevTop := state.TopRow
	state.TopRow += delta
	state.clampRows()
	if state.TopRow-prevTop == delta {
		state.CursorRow = state.TopRow + offset
	} else {
		state.CursorRow += delta
	}
	state.keepCursorVisible()
}

// applyMerge keeps the cursor on the same line while rows shift.
func (r *StateReducer) applyMerge(state *AppState, a IndexMergedAction) {
	state.Loading = false
	state.Lines = a.Lines
	if a.Reset {
		state.CursorRow = a.ViewpointRow
		state.Anchor = -1
		state.centerCursor()
		return
	}
	state.CursorRow += a.RowDelta
	state.TopRow += a.RowDelta
	if state.Anchor >= 0 {
		state.Anchor = max(state.Anchor+a.RowDelta, 0)
	}
	if state.Follow {
		state.CursorRow = state.Lines - 1
	}
	state.keepCursorVisible()
}

func (r *StateReducer) closePrompt(state *AppState) {
	state.Prompt = PromptNone
	state.PromptText = nil
	state.PromptCursor = 0
}

// submitPrompt turns the typed text into an effect action.
func (r *StateReducer) submitPrompt(state *AppState) {
	kind := state.Prompt
	text := string(state.PromptText)
	r.closePrompt(state)

	switch kind {
	case PromptSearchForward, PromptSearchBackward:
		if text == "" {
			// empty query repeats the previous one in the new direction
			if state.SearchQuery == "" {
				return
			}
			text = state.SearchQuery
		}
		state.SearchQuery = text
		state.SearchBackward = kind == PromptSearchBackward
		state.emit(SearchSubmitAction{Query: text, Backward: state.SearchBackward})
	case PromptFilterKeep:
		if text != "" {
			state.emit(FilterAddAction{Query: text, Action: pattern.Keep})
		}
	case PromptFilterReject:
		if text != "" {
			state.emit(FilterAddAction{Query: text, Action: pattern.Reject})
		}
	case PromptGoto:
		if text != "" {
			state.emit(GotoAction{Target: text})
		}
	case PromptExport:
		if text != "" {
			state.emit(ExportAction{Path: text})
		}
	case PromptMarkLabel:
		state.emit(MarkLabelAction{Label: text})
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func previousWordBoundary(runes []rune, pos int) int {
	if pos <= 0 {
		return 0
	}
	i := pos
	for i > 0 && !isWordChar(runes[i-1]) {
		i--
	}
	for i > 0 && isWordChar(runes[i-1]) {
		i--
	}
	return i
}
