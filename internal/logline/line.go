package logline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/textenc"
	"github.com/kk-code-lab/rlog/internal/textutil"
)

// Line is one decoded log line.
type Line struct {
	Start   int64
	Columns []string
	// Highlight indexes the first matching highlight rule, -1 for none.
	Highlight int
}

// Text joins the columns with sep.
func (l Line) Text(sep string) string {
	switch len(l.Columns) {
	case 0:
		return ""
	case 1:
		return l.Columns[0]
	}
	return strings.Join(l.Columns, sep)
}

type Options struct {
	// ColumnDelimiter splits a line into columns; empty keeps one column.
	ColumnDelimiter string
	// TabWidth > 0 expands tabs for display.
	TabWidth int
	// Sanitize escapes control characters for display.
	Sanitize   bool
	Highlights pattern.HighlightList
}

// Decoder turns raw line bytes into Lines. It is safe for concurrent use as
// long as it is not modified.
type Decoder struct {
	enc        textenc.Encoding
	columnRaw  []byte
	cr         []byte
	tabWidth   int
	sanitize   bool
	highlights pattern.HighlightList
}

func NewDecoder(enc textenc.Encoding, opts Options) (*Decoder, error) {
	d := &Decoder{
		enc:        enc,
		tabWidth:   opts.TabWidth,
		sanitize:   opts.Sanitize,
		highlights: opts.Highlights,
	}
	if opts.ColumnDelimiter != "" {
		raw, err := enc.Encode(opts.ColumnDelimiter)
		if err != nil {
			return nil, fmt.Errorf("column delimiter: %w", err)
		}
		d.columnRaw = raw
	}
	cr, err := enc.Encode("\r")
	if err != nil {
		return nil, err
	}
	d.cr = cr
	return d, nil
}

func (d *Decoder) Encoding() textenc.Encoding {
	return d.enc
}

// Text decodes the whole line, the form filters and searches see. A CR left
// over from CRLF files read with an LF delimiter is dropped.
func (d *Decoder) Text(raw []byte) string {
	return d.enc.Decode(d.trim(raw))
}

// Decode splits raw into columns, byte-exactly on the encoded column
// delimiter, and applies display transforms.
func (d *Decoder) Decode(start int64, raw []byte) Line {
	raw = d.trim(raw)
	line := Line{Start: start, Highlight: -1}
	if len(d.highlights) > 0 {
		line.Highlight = d.highlights.Match(d.enc.Decode(raw))
	}

	if len(d.columnRaw) == 0 {
		line.Columns = []string{d.present(raw)}
		return line
	}
	step := d.enc.UnitSize()
	for i := 0; ; {
		j := scan.IndexDelimiter(raw, i, d.columnRaw, step)
		if j < 0 {
			line.Columns = append(line.Columns, d.present(raw[i:]))
			break
		}
		line.Columns = append(line.Columns, d.present(raw[i:j]))
		i = j + len(d.columnRaw)
	}
	return line
}

func (d *Decoder) present(raw []byte) string {
	text := d.enc.Decode(raw)
	if d.tabWidth > 0 {
		text = textutil.ExpandTabs(text, d.tabWidth)
	}
	if d.sanitize {
		text = textutil.SanitizeLine(text)
	}
	return text
}

func (d *Decoder) trim(raw []byte) []byte {
	if len(d.cr) > 0 && bytes.HasSuffix(raw, d.cr) && (len(raw)-len(d.cr))%d.enc.UnitSize() == 0 {
		return raw[:len(raw)-len(d.cr)]
	}
	return raw
}
