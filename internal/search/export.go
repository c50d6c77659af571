package search

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

// ExportOptions describes which lines to write and how.
type ExportOptions struct {
	// Ranges are processed independently, in the given order.
	Ranges  []scan.ByteRange
	Filters pattern.FilterList

	Encoding textenc.Encoding
	// Delimiter is the encoded row delimiter of the input.
	Delimiter []byte
	// Decoder splits input columns.
	Decoder *logline.Decoder

	// RowDelimiter and ColumnDelimiter are written to the output.
	RowDelimiter    string
	ColumnDelimiter string

	BufferSize int
	FileEnd    int64
	Progress   func(scanned, total int64)
}

type ExportStats struct {
	Lines int
	Bytes int64
}

// Export writes every line that starts inside one of opts.Ranges and passes
// the filters to w, as UTF-8 text.
func Export(ctx context.Context, rs io.ReadSeeker, opts ExportOptions, w io.Writer) (ExportStats, error) {
	var stats ExportStats
	dec, err := decoderFor(opts.Decoder, opts.Encoding)
	if err != nil {
		return stats, err
	}
	rowDelim := opts.RowDelimiter
	if rowDelim == "" {
		rowDelim = "\n"
	}
	colDelim := opts.ColumnDelimiter
	if colDelim == "" {
		colDelim = "\t"
	}

	buf := make([]byte, bufferSize(opts.BufferSize))
	out := bufio.NewWriter(w)
	var writeErr error

	for _, r := range opts.Ranges {
		r = r.Intersect(scan.ByteRange{Begin: 0, End: opts.FileEnd})
		if !r.Valid() || r.IsEmpty() {
			continue
		}
		begin, err := scan.FindLineStart(rs, r.Begin, opts.FileEnd, opts.Encoding, opts.Delimiter, buf)
		if err != nil {
			return stats, fmt.Errorf("export %s: %w", r, err)
		}

		status, err := scan.FindLines(rs, scan.Request{
			Start:     begin,
			Limit:     r.End,
			FileEnd:   opts.FileEnd,
			Encoding:  opts.Encoding,
			Delimiter: opts.Delimiter,
			Buffer:    buf,
			AddLine: func(lr scan.ByteRange, data []byte) bool {
				if !opts.Filters.Empty() && !opts.Filters.Passes(dec.Text(data)) {
					return true
				}
				line := dec.Decode(lr.Begin, data)
				n, err := out.WriteString(line.Text(colDelim) + rowDelim)
				stats.Bytes += int64(n)
				if err != nil {
					writeErr = err
					return false
				}
				stats.Lines++
				return true
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
		})
		if err != nil {
			return stats, fmt.Errorf("export %s: %w", r, err)
		}
		if writeErr != nil {
			return stats, fmt.Errorf("write export: %w", writeErr)
		}
		if status == scan.StatusCancelled {
			_ = out.Flush()
			return stats, ctx.Err()
		}
	}

	if err := out.Flush(); err != nil {
		return stats, fmt.Errorf("write export: %w", err)
	}
	return stats, nil
}
