package pattern

import (
	"fmt"
	"strings"
)

// Action decides what a matching filter does with a line.
type Action int

const (
	Keep Action = iota
	Reject
)

func (a Action) String() string {
	if a == Reject {
		return "reject"
	}
	return "keep"
}

// ParseAction accepts "keep"/"include" and "reject"/"exclude".
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "keep", "include", "show":
		return Keep, nil
	case "reject", "exclude", "hide":
		return Reject, nil
	}
	return Keep, fmt.Errorf("unknown filter action %q", name)
}

type Filter struct {
	Pattern Pattern
	Action  Action
}

// FilterList is evaluated in order; the first filter whose pattern matches
// decides. Lines matching no filter are kept.
type FilterList []Filter

func (l FilterList) Passes(text string) bool {
	for _, f := range l {
		if f.Pattern != nil && f.Pattern.Match(text) {
			return f.Action == Keep
		}
	}
	return true
}

func (l FilterList) Empty() bool {
	return len(l) == 0
}

// Highlight colours lines matching Pattern. Color is a tcell colour name or
// #rrggbb value.
type Highlight struct {
	Pattern Pattern
	Color   string
}

type HighlightList []Highlight

// Match returns the index of the first rule matching text, or -1.
func (l HighlightList) Match(text string) int {
	for i, h := range l {
		if h.Pattern != nil && h.Pattern.Match(text) {
			return i
		}
	}
	return -1
}
