package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kk-code-lab/rlog/internal/textenc"
)

// Chunk is one aligned buffer load. Data aliases the caller's buffer.
type Chunk struct {
	Start  int64
	Data   []byte
	AtEdge bool
}

// End is the offset one past the last byte of Data.
func (c Chunk) End() int64 {
	return c.Start + int64(len(c.Data))
}

// Fill loads up to len(buf) bytes between pos and edge. Forward reads
// [pos, edge) from pos; backward reads the bytes immediately before pos and
// never below edge. The result is trimmed so it neither starts nor ends in
// the middle of a character, and a byte order mark at offset 0 is skipped.
//
// After a backward read the stream is left positioned at the first byte
// that was read.
func Fill(rs io.ReadSeeker, pos, edge int64, enc textenc.Encoding, backward bool, buf []byte) (Chunk, error) {
	if backward {
		return fillBackward(rs, pos, edge, enc, buf)
	}
	return fillForward(rs, pos, edge, enc, buf)
}

func fillForward(rs io.ReadSeeker, pos, edge int64, enc textenc.Encoding, buf []byte) (Chunk, error) {
	start := pos
	if enc.UnitSize() == 2 && start%2 != 0 {
		start++
	}
	if start >= edge {
		return Chunk{Start: pos, AtEdge: true}, nil
	}
	end := min(start+int64(len(buf)), edge)
	data := buf[:end-start]
	if err := ReadFull(rs, start, data); err != nil {
		return Chunk{Start: start}, err
	}

	chunk := Chunk{Start: start, Data: data, AtEdge: end == edge}
	chunk = alignHead(chunk, enc)
	if !chunk.AtEdge {
		chunk.Data = alignTail(chunk.Data, enc)
	}
	return chunk, nil
}

func fillBackward(rs io.ReadSeeker, pos, edge int64, enc textenc.Encoding, buf []byte) (Chunk, error) {
	if enc.UnitSize() == 2 && pos%2 != 0 {
		pos--
	}
	if pos <= edge {
		return Chunk{Start: max(pos, 0), AtEdge: true}, nil
	}
	start := max(edge, pos-int64(len(buf)))
	atEdge := start == edge
	if enc.UnitSize() == 2 && start%2 != 0 {
		start++
	}
	if start >= pos {
		return Chunk{Start: pos, AtEdge: atEdge}, nil
	}
	data := buf[:pos-start]
	if err := ReadFull(rs, start, data); err != nil {
		return Chunk{Start: start}, err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return Chunk{Start: start}, fmt.Errorf("seek to %d: %w", start, err)
	}

	chunk := Chunk{Start: start, Data: data, AtEdge: atEdge}
	chunk = alignHead(chunk, enc)
	chunk.Data = alignTail(chunk.Data, enc)
	return chunk, nil
}

// ReadFull reads exactly len(p) bytes at offset off.
func ReadFull(rs io.ReadSeeker, off int64, p []byte) error {
	if _, err := rs.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", off, err)
	}
	n, err := io.ReadFull(rs, p)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ShortReadError{Offset: off, Expected: len(p), Actual: n}
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(p), off, err)
	}
	return nil
}

func alignHead(c Chunk, enc textenc.Encoding) Chunk {
	skip := 0
	if c.Start == 0 {
		if bom := enc.BOM(); len(bom) > 0 && bytes.HasPrefix(c.Data, bom) {
			skip = len(bom)
		}
	} else {
		switch {
		case enc.Variable():
			for skip < len(c.Data) && skip < utf8.UTFMax-1 && isContinuation(c.Data[skip]) {
				skip++
			}
		case enc.UnitSize() == 2:
			if len(c.Data) >= 2 && isLowSurrogate(unitAt(c.Data, 0, enc)) {
				skip = 2
			}
		}
	}
	c.Start += int64(skip)
	c.Data = c.Data[skip:]
	return c
}

func alignTail(data []byte, enc textenc.Encoding) []byte {
	switch {
	case enc.Variable():
		for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
			if isContinuation(data[i]) {
				continue
			}
			if !utf8.FullRune(data[i:]) {
				return data[:i]
			}
			break
		}
	case enc.UnitSize() == 2:
		if len(data)%2 != 0 {
			data = data[:len(data)-1]
		}
		if n := len(data); n >= 2 && isHighSurrogate(unitAt(data, n-2, enc)) {
			data = data[:n-2]
		}
	}
	return data
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

func unitAt(data []byte, i int, enc textenc.Encoding) uint16 {
	if enc == textenc.UTF16BE {
		return uint16(data[i])<<8 | uint16(data[i+1])
	}
	return uint16(data[i+1])<<8 | uint16(data[i])
}

func isHighSurrogate(u uint16) bool {
	return u >= 0xD800 && u <= 0xDBFF
}

func isLowSurrogate(u uint16) bool {
	return u >= 0xDC00 && u <= 0xDFFF
}
