package scan

import (
	"errors"
	"io"

	"github.com/kk-code-lab/rlog/internal/textenc"
)

// Status tells how a FindLines call ended.
type Status int

const (
	// StatusCompleted means the limit or the file edge was reached.
	StatusCompleted Status = iota
	// StatusStopped means AddLine asked to stop.
	StatusStopped
	// StatusCancelled means the progress callback asked to stop.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusStopped:
		return "stopped"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// LineFunc receives one line without its delimiter. data aliases the scan
// buffer and is only valid during the call. Returning false stops the scan.
type LineFunc func(r ByteRange, data []byte) bool

// ProgressFunc is called before every buffer load. Returning false cancels
// the scan.
type ProgressFunc func(scanned, total int64) bool

var errEmptyDelimiter = errors.New("scan: empty row delimiter")
var errNoBuffer = errors.New("scan: empty buffer")

// Request describes one FindLines walk.
//
// Forward walks start at Start (a line start) and stop once the next line
// would start at or after Limit. Backward walks treat Start as the exclusive
// end of the last line to report and stop once a reported line starts at or
// before Limit. FileEnd is the snapshotted file length.
type Request struct {
	Start     int64
	Limit     int64
	FileEnd   int64
	Backward  bool
	Encoding  textenc.Encoding
	Delimiter []byte
	Buffer    []byte
	AddLine   LineFunc
	Progress  ProgressFunc
}

type cursor struct {
	rs    io.ReadSeeker
	req   Request
	pos   int64
	step  int
	delim int
}

// FindLines walks the file line by line in either direction, handing each
// line to req.AddLine.
func FindLines(rs io.ReadSeeker, req Request) (Status, error) {
	if len(req.Delimiter) == 0 {
		return StatusCompleted, errEmptyDelimiter
	}
	if len(req.Buffer) == 0 {
		return StatusCompleted, errNoBuffer
	}
	c := &cursor{
		rs:    rs,
		req:   req,
		pos:   min(max(req.Start, 0), req.FileEnd),
		step:  req.Encoding.UnitSize(),
		delim: len(req.Delimiter),
	}
	if req.Backward {
		return c.backward()
	}
	return c.forward()
}

func (c *cursor) progress(scanned, total int64) bool {
	if c.req.Progress == nil {
		return true
	}
	return c.req.Progress(scanned, total)
}

func (c *cursor) forward() (Status, error) {
	req := c.req
	limit := min(req.Limit, req.FileEnd)
	total := max(limit-c.pos, 0)
	origin := c.pos

	for {
		if c.pos >= limit {
			return StatusCompleted, nil
		}
		if !c.progress(c.pos-origin, total) {
			return StatusCancelled, nil
		}
		chunk, err := Fill(c.rs, c.pos, req.FileEnd, req.Encoding, false, req.Buffer)
		if err != nil {
			return StatusCompleted, err
		}
		data := chunk.Data
		if len(data) == 0 {
			if chunk.AtEdge {
				return StatusCompleted, nil
			}
			return StatusCompleted, &NoLinesError{BufferSize: len(req.Buffer)}
		}

		i := 0
		found := false
		for {
			ds := indexDelimiter(data, i, req.Delimiter, c.step)
			if ds < 0 {
				break
			}
			found = true
			r := ByteRange{Begin: chunk.Start + int64(i), End: chunk.Start + int64(ds)}
			if !req.AddLine(r, data[i:ds]) {
				return StatusStopped, nil
			}
			i = ds + c.delim
			if chunk.Start+int64(i) >= limit {
				return StatusCompleted, nil
			}
		}

		if chunk.AtEdge {
			if i < len(data) {
				r := ByteRange{Begin: chunk.Start + int64(i), End: chunk.End()}
				if !req.AddLine(r, data[i:]) {
					return StatusStopped, nil
				}
			}
			return StatusCompleted, nil
		}
		if !found {
			return StatusCompleted, &NoLinesError{BufferSize: len(req.Buffer)}
		}
		c.pos = chunk.Start + int64(i)
	}
}

func (c *cursor) backward() (Status, error) {
	req := c.req
	limit := max(req.Limit, 0)
	total := max(c.pos-limit, 0)
	origin := c.pos

	for {
		if c.pos <= 0 {
			return StatusCompleted, nil
		}
		if !c.progress(origin-c.pos, total) {
			return StatusCancelled, nil
		}
		chunk, err := Fill(c.rs, c.pos, 0, req.Encoding, true, req.Buffer)
		if err != nil {
			return StatusCompleted, err
		}
		data := chunk.Data
		if len(data) == 0 {
			if chunk.AtEdge {
				return StatusCompleted, nil
			}
			return StatusCompleted, &NoLinesError{BufferSize: len(req.Buffer)}
		}

		end := len(data)
		if end >= c.delim && lastIndexDelimiter(data, end, req.Delimiter, c.step) == end-c.delim {
			end -= c.delim
		}

		found := false
		for {
			ds := lastIndexDelimiter(data, end, req.Delimiter, c.step)
			if ds < 0 {
				break
			}
			found = true
			lineStart := chunk.Start + int64(ds+c.delim)
			r := ByteRange{Begin: lineStart, End: chunk.Start + int64(end)}
			if !req.AddLine(r, data[ds+c.delim:end]) {
				return StatusStopped, nil
			}
			if lineStart <= limit {
				return StatusCompleted, nil
			}
			end = ds
		}

		if chunk.AtEdge {
			r := ByteRange{Begin: chunk.Start, End: chunk.Start + int64(end)}
			if !req.AddLine(r, data[:end]) {
				return StatusStopped, nil
			}
			return StatusCompleted, nil
		}
		if !found {
			return StatusCompleted, &NoLinesError{BufferSize: len(req.Buffer)}
		}
		c.pos = chunk.Start + int64(end+c.delim)
	}
}

// FindLineStart returns the offset of the first byte of the line that
// contains offset, searching backward at most one buffer.
func FindLineStart(rs io.ReadSeeker, offset, fileEnd int64, enc textenc.Encoding, delim []byte, buf []byte) (int64, error) {
	if len(delim) == 0 {
		return 0, errEmptyDelimiter
	}
	offset = min(max(offset, 0), fileEnd)
	if enc.UnitSize() == 2 && offset%2 != 0 {
		offset--
	}
	if offset == 0 {
		return 0, nil
	}
	chunk, err := Fill(rs, offset, 0, enc, true, buf)
	if err != nil {
		return 0, err
	}
	if ds := lastIndexDelimiter(chunk.Data, len(chunk.Data), delim, enc.UnitSize()); ds >= 0 {
		return chunk.Start + int64(ds+len(delim)), nil
	}
	if chunk.AtEdge {
		return chunk.Start, nil
	}
	return 0, &NoLinesError{BufferSize: len(buf)}
}
