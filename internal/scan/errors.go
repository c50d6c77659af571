package scan

import "fmt"

// NoLinesError reports a full buffer that contained no row delimiter. It
// usually means the row delimiter is misconfigured or a line is longer than
// the buffer.
type NoLinesError struct {
	BufferSize int
}

func (e *NoLinesError) Error() string {
	return fmt.Sprintf("no line break found in %d bytes: line longer than the buffer or wrong row delimiter", e.BufferSize)
}

// ShortReadError reports fewer bytes than requested at Offset.
type ShortReadError struct {
	Offset   int64
	Expected int
	Actual   int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at offset %d: got %d of %d bytes", e.Offset, e.Actual, e.Expected)
}
