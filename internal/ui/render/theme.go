package render

import "github.com/gdamore/tcell/v2"

// ColorTheme defines application colors.
type ColorTheme struct {
	Foreground  tcell.Color
	Background  tcell.Color
	CursorBg    tcell.Color
	CursorFg    tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	MatchBg     tcell.Color
	MatchFg     tcell.Color
	ColumnSepFg tcell.Color
	MarkFg      tcell.Color
	FillerFg    tcell.Color
	StatusBg    tcell.Color
	StatusFg    tcell.Color
	ErrorFg     tcell.Color
	PromptFg    tcell.Color
}

// GetColorTheme returns the default color scheme.
func GetColorTheme() ColorTheme {
	return ColorTheme{
		Foreground:  tcell.ColorDefault,
		Background:  tcell.ColorDefault,
		CursorBg:    tcell.Color236,
		CursorFg:    tcell.ColorDefault,
		SelectionBg: tcell.Color33,
		SelectionFg: tcell.ColorWhite,
		MatchBg:     tcell.Color220,
		MatchFg:     tcell.ColorBlack,
		ColumnSepFg: tcell.Color240,
		MarkFg:      tcell.Color208,
		FillerFg:    tcell.Color240,
		StatusBg:    tcell.Color236,
		StatusFg:    tcell.Color252,
		ErrorFg:     tcell.ColorRed,
		PromptFg:    tcell.ColorDefault,
	}
}
