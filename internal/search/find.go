package search

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

const defaultBufferSize = 64 * 1024

var errNoPattern = errors.New("search: no pattern")

// FindOptions describes one search over a stream.
type FindOptions struct {
	Pattern pattern.Pattern
	Filters pattern.FilterList
	// Start is any offset inside the line the search starts from.
	Start    int64
	Backward bool
	// SkipCurrent makes a forward search begin at the line after Start.
	SkipCurrent bool
	FileEnd     int64
	Encoding    textenc.Encoding
	// Delimiter is the encoded row delimiter.
	Delimiter  []byte
	Decoder    *logline.Decoder
	BufferSize int
	Progress   func(scanned, total int64)
}

// Match is the first line satisfying the pattern.
type Match struct {
	Offset int64
	Range  scan.ByteRange
	Text   string
}

// Find scans from opts.Start toward the far edge of the file and returns the
// first line that passes the filters and matches the pattern. A search that
// reaches the edge returns found=false and a nil error; a cancelled one
// returns ctx.Err().
func Find(ctx context.Context, rs io.ReadSeeker, opts FindOptions) (Match, bool, error) {
	if opts.Pattern == nil {
		return Match{}, false, errNoPattern
	}
	dec, err := decoderFor(opts.Decoder, opts.Encoding)
	if err != nil {
		return Match{}, false, err
	}
	buf := make([]byte, bufferSize(opts.BufferSize))

	lineStart, err := scan.FindLineStart(rs, opts.Start, opts.FileEnd, opts.Encoding, opts.Delimiter, buf)
	if err != nil {
		return Match{}, false, fmt.Errorf("find line start: %w", err)
	}

	var match Match
	found := false
	req := scan.Request{
		Start:     lineStart,
		Limit:     opts.FileEnd,
		FileEnd:   opts.FileEnd,
		Backward:  opts.Backward,
		Encoding:  opts.Encoding,
		Delimiter: opts.Delimiter,
		Buffer:    buf,
		AddLine: func(r scan.ByteRange, data []byte) bool {
			if opts.SkipCurrent && !opts.Backward && r.Begin == lineStart {
				return true
			}
			text := dec.Text(data)
			if !opts.Filters.Passes(text) || !opts.Pattern.Match(text) {
				return true
			}
			match = Match{Offset: r.Begin, Range: r, Text: text}
			found = true
			return false
		},
		Progress: func(scanned, total int64) bool {
			if ctx.Err() != nil {
				return false
			}
			if opts.Progress != nil {
				opts.Progress(scanned, total)
			}
			return true
		},
	}
	if opts.Backward {
		req.Limit = 0
	}

	status, err := scan.FindLines(rs, req)
	if err != nil {
		return Match{}, false, err
	}
	if status == scan.StatusCancelled {
		return Match{}, false, ctx.Err()
	}
	return match, found, nil
}

func decoderFor(dec *logline.Decoder, enc textenc.Encoding) (*logline.Decoder, error) {
	if dec != nil {
		return dec, nil
	}
	return logline.NewDecoder(enc, logline.Options{})
}

func bufferSize(n int) int {
	if n <= 0 {
		return defaultBufferSize
	}
	return n
}
