package lineindex

import (
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

const (
	DefaultBufferSize  = 64 * 1024
	DefaultWindowBytes = 4 * 1024 * 1024
	DefaultMaxLines    = 20000

	minBufferSize = 64
)

// Config tunes how much of the file a build looks at.
type Config struct {
	// BufferSize bounds the longest line that can be indexed.
	BufferSize int
	// WindowBytes is the byte window centred on the viewpoint.
	WindowBytes int64
	// SpanBytes caps the bytes covered by the index after a splice.
	// Zero means WindowBytes.
	SpanBytes int64
	// MaxLines caps the number of indexed lines.
	MaxLines int

	// Encoding is used as is unless AutoEncoding is set.
	Encoding     textenc.Encoding
	AutoEncoding bool
	// RowDelimiter is the delimiter text; empty means detect.
	RowDelimiter string

	Filters pattern.FilterList
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	c.BufferSize = max(c.BufferSize, minBufferSize)
	if c.WindowBytes <= 0 {
		c.WindowBytes = DefaultWindowBytes
	}
	if c.SpanBytes <= 0 {
		c.SpanBytes = c.WindowBytes
	}
	if c.MaxLines <= 0 {
		c.MaxLines = DefaultMaxLines
	}
	return c
}
