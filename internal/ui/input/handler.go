package input

import (
	"github.com/gdamore/tcell/v2"
	statepkg "github.com/kk-code-lab/rlog/internal/state"
)

// InputHandler converts tcell events to Actions
type InputHandler struct {
	actionChan chan statepkg.Action
	state      *statepkg.AppState
}

func NewInputHandler(actionChan chan statepkg.Action) *InputHandler {
	return &InputHandler{
		actionChan: actionChan,
	}
}

// SetState sets the state reference for mode checking
func (ih *InputHandler) SetState(state *statepkg.AppState) {
	ih.state = state
}

// ProcessEvent converts a tcell event into an Action. It returns false when
// the application should quit.
func (ih *InputHandler) ProcessEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return ih.processKeyEvent(ev)
	case *tcell.EventResize:
		w, h := ev.Size()
		ih.actionChan <- statepkg.ResizeAction{Width: w, Height: h}
		return true
	default:
		return true
	}
}

func (ih *InputHandler) processKeyEvent(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		ih.actionChan <- statepkg.QuitAction{}
		return false
	}
	if ih.state != nil && ih.state.HelpVisible {
		ih.actionChan <- statepkg.HelpHideAction{}
		return true
	}
	if ih.state != nil && ih.state.Prompt != statepkg.PromptNone {
		ih.processPromptKey(ev)
		return true
	}
	return ih.processNormalKey(ev)
}

func (ih *InputHandler) processPromptKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		ih.actionChan <- statepkg.PromptCancelAction{}
	case tcell.KeyEnter:
		ih.actionChan <- statepkg.PromptSubmitAction{}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if ev.Modifiers()&tcell.ModAlt != 0 {
			ih.actionChan <- statepkg.PromptDeleteWordAction{}
			return
		}
		ih.actionChan <- statepkg.PromptBackspaceAction{}
	case tcell.KeyCtrlW:
		ih.actionChan <- statepkg.PromptDeleteWordAction{}
	case tcell.KeyLeft:
		ih.actionChan <- statepkg.PromptMoveCursorAction{Direction: "left"}
	case tcell.KeyRight:
		ih.actionChan <- statepkg.PromptMoveCursorAction{Direction: "right"}
	case tcell.KeyHome, tcell.KeyCtrlA:
		ih.actionChan <- statepkg.PromptMoveCursorAction{Direction: "home"}
	case tcell.KeyEnd, tcell.KeyCtrlE:
		ih.actionChan <- statepkg.PromptMoveCursorAction{Direction: "end"}
	case tcell.KeyTab:
		ih.actionChan <- statepkg.PromptCharAction{Char: '\t'}
	case tcell.KeyRune:
		ih.actionChan <- statepkg.PromptCharAction{Char: ev.Rune()}
	}
}

func (ih *InputHandler) processNormalKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		switch {
		case ih.state != nil && ih.state.Searching:
			ih.actionChan <- statepkg.SearchCancelAction{}
		case ih.state != nil && ih.state.Anchor >= 0:
			ih.actionChan <- statepkg.SelectToggleAction{}
		}
		return true
	case tcell.KeyUp:
		ih.actionChan <- statepkg.LineUpAction{}
	case tcell.KeyDown, tcell.KeyEnter:
		ih.actionChan <- statepkg.LineDownAction{}
	case tcell.KeyPgUp, tcell.KeyCtrlB:
		ih.actionChan <- statepkg.PageUpAction{}
	case tcell.KeyPgDn, tcell.KeyCtrlF:
		ih.actionChan <- statepkg.PageDownAction{}
	case tcell.KeyCtrlU:
		ih.actionChan <- statepkg.HalfPageUpAction{}
	case tcell.KeyCtrlD:
		ih.actionChan <- statepkg.HalfPageDownAction{}
	case tcell.KeyHome:
		ih.actionChan <- statepkg.GoTopAction{}
	case tcell.KeyEnd:
		ih.actionChan <- statepkg.GoBottomAction{}
	case tcell.KeyLeft:
		ih.actionChan <- statepkg.ScrollLeftAction{}
	case tcell.KeyRight:
		ih.actionChan <- statepkg.ScrollRightAction{}
	case tcell.KeyCtrlZ:
		ih.actionChan <- statepkg.SuspendAction{}
	case tcell.KeyCtrlL:
		ih.actionChan <- statepkg.ReloadAction{}
	case tcell.KeyRune:
		return ih.processRune(ev.Rune())
	}
	return true
}

func (ih *InputHandler) processRune(r rune) bool {
	switch r {
	case 'q', 'Q':
		ih.actionChan <- statepkg.QuitAction{}
		return false
	case 'j':
		ih.actionChan <- statepkg.LineDownAction{}
	case 'k':
		ih.actionChan <- statepkg.LineUpAction{}
	case ' ', 'f':
		ih.actionChan <- statepkg.PageDownAction{}
	case 'b':
		ih.actionChan <- statepkg.PageUpAction{}
	case 'd':
		ih.actionChan <- statepkg.HalfPageDownAction{}
	case 'u':
		ih.actionChan <- statepkg.HalfPageUpAction{}
	case 'g', '<':
		ih.actionChan <- statepkg.GoTopAction{}
	case 'G', '>':
		ih.actionChan <- statepkg.GoBottomAction{}
	case '0':
		ih.actionChan <- statepkg.ScrollHomeAction{}
	case '/':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptSearchForward}
	case '?':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptSearchBackward}
	case 'n':
		ih.actionChan <- statepkg.SearchNextAction{}
	case 'N':
		ih.actionChan <- statepkg.SearchNextAction{Reverse: true}
	case 'R':
		ih.actionChan <- statepkg.SearchToggleRegexAction{}
	case '&':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptFilterKeep}
	case '!':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptFilterReject}
	case 'x':
		ih.actionChan <- statepkg.FilterPopAction{}
	case 'X':
		ih.actionChan <- statepkg.FilterClearAction{}
	case ':':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptGoto}
	case 'e':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptExport}
	case 'v':
		ih.actionChan <- statepkg.SelectToggleAction{}
	case 'm':
		ih.actionChan <- statepkg.MarkToggleAction{}
	case 'M':
		ih.actionChan <- statepkg.PromptStartAction{Kind: statepkg.PromptMarkLabel}
	case ']':
		ih.actionChan <- statepkg.MarkNextAction{}
	case '[':
		ih.actionChan <- statepkg.MarkNextAction{Reverse: true}
	case 'F':
		ih.actionChan <- statepkg.FollowToggleAction{}
	case 'r':
		ih.actionChan <- statepkg.ReloadAction{}
	case 'E':
		ih.actionChan <- statepkg.EncodingCycleAction{}
	case 'h', 'H':
		ih.actionChan <- statepkg.HelpToggleAction{}
	}
	return true
}
