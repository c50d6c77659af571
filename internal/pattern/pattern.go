package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte range inside matched text.
type Span struct {
	Start int
	End   int
}

// Pattern is a predicate over decoded line text.
type Pattern interface {
	Match(text string) bool
	// Spans returns every non-overlapping match, left to right.
	Spans(text string) []Span
	String() string
}

// CaseMode controls case sensitivity of a pattern.
type CaseMode int

const (
	// CaseSmart ignores case unless the expression has an upper-case letter.
	CaseSmart CaseMode = iota
	CaseSensitive
	CaseInsensitive
)

type Options struct {
	Regex bool
	Case  CaseMode
}

var ErrEmptyPattern = errors.New("empty pattern")

// Compile builds a literal or regular expression pattern.
func Compile(expr string, opts Options) (Pattern, error) {
	if expr == "" {
		return nil, ErrEmptyPattern
	}
	insensitive := false
	switch opts.Case {
	case CaseInsensitive:
		insensitive = true
	case CaseSmart:
		insensitive = smartCaseInsensitive(expr)
	}

	if opts.Regex {
		source := expr
		if insensitive {
			source = "(?i)" + expr
		}
		re, err := regexp.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		return &regexPattern{expr: expr, re: re}, nil
	}
	lit := &literalPattern{expr: expr, insensitive: insensitive}
	if insensitive {
		lit.lower = strings.ToLower(expr)
	}
	return lit, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(expr string, opts Options) Pattern {
	p, err := Compile(expr, opts)
	if err != nil {
		panic(err)
	}
	return p
}

type literalPattern struct {
	expr        string
	lower       string
	insensitive bool
}

func (p *literalPattern) String() string {
	return p.expr
}

func (p *literalPattern) Match(text string) bool {
	if !p.insensitive {
		return strings.Contains(text, p.expr)
	}
	return len(p.find(text, 1)) > 0
}

func (p *literalPattern) Spans(text string) []Span {
	return p.find(text, -1)
}

func (p *literalPattern) find(text string, limit int) []Span {
	if text == "" {
		return nil
	}
	var spans []Span
	if !p.insensitive {
		for from := 0; limit < 0 || len(spans) < limit; {
			idx := strings.Index(text[from:], p.expr)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, Span{Start: start, End: start + len(p.expr)})
			from = start + len(p.expr)
		}
		return spans
	}

	lower := strings.ToLower(text)
	if len(lower) == len(text) {
		for from := 0; limit < 0 || len(spans) < limit; {
			idx := strings.Index(lower[from:], p.lower)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, Span{Start: start, End: start + len(p.lower)})
			from = start + len(p.lower)
		}
		return spans
	}

	// Lowering changed byte lengths; compare rune by rune against the original.
	for i := 0; i < len(text); {
		if limit > 0 && len(spans) >= limit {
			break
		}
		if end, ok := matchesAtFolded(text, i, p.lower); ok {
			spans = append(spans, Span{Start: i, End: end})
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += max(size, 1)
	}
	return spans
}

func matchesAtFolded(haystack string, start int, needleLower string) (int, bool) {
	at := start
	for _, nr := range needleLower {
		if at >= len(haystack) {
			return 0, false
		}
		hr, size := utf8.DecodeRuneInString(haystack[at:])
		if size <= 0 || unicode.ToLower(hr) != nr {
			return 0, false
		}
		at += size
	}
	return at, true
}

func smartCaseInsensitive(expr string) bool {
	for _, r := range expr {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

type regexPattern struct {
	expr string
	re   *regexp.Regexp
}

func (p *regexPattern) String() string {
	return p.expr
}

func (p *regexPattern) Match(text string) bool {
	return p.re.MatchString(text)
}

func (p *regexPattern) Spans(text string) []Span {
	locs := p.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}
	return spans
}
