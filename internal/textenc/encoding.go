package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies how a log file stores its characters.
type Encoding int

const (
	// ASCII is any single-byte code page; bytes above 0x7F decode as Windows-1252.
	ASCII Encoding = iota
	UTF8
	UTF16LE
	UTF16BE
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func (e Encoding) String() string {
	switch e {
	case ASCII:
		return "ascii"
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// Parse resolves a user supplied encoding name.
func Parse(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ascii", "ansi", "latin1", "cp1252", "windows-1252":
		return ASCII, nil
	case "utf-8", "utf8":
		return UTF8, nil
	case "utf-16le", "utf16le", "utf-16", "utf16", "ucs-2":
		return UTF16LE, nil
	case "utf-16be", "utf16be":
		return UTF16BE, nil
	}
	return ASCII, fmt.Errorf("unknown encoding %q", name)
}

// UnitSize is the width in bytes of one code unit. Delimiters are only
// matched at offsets that are a multiple of it.
func (e Encoding) UnitSize() int {
	if e == UTF16LE || e == UTF16BE {
		return 2
	}
	return 1
}

// Variable reports whether characters span a variable number of code units
// that need continuation-byte alignment.
func (e Encoding) Variable() bool {
	return e == UTF8
}

// BOM returns the byte order mark the encoding may carry at offset 0.
func (e Encoding) BOM() []byte {
	switch e {
	case UTF8:
		return bomUTF8
	case UTF16LE:
		return bomUTF16LE
	case UTF16BE:
		return bomUTF16BE
	default:
		return nil
	}
}

// Encode converts UTF-8 text (a delimiter, usually) into the raw bytes the
// file would contain. No byte order mark is written.
func (e Encoding) Encode(text string) ([]byte, error) {
	switch e {
	case UTF8:
		return []byte(text), nil
	case UTF16LE, UTF16BE:
		out, err := unicode.UTF16(e.endian(), unicode.IgnoreBOM).NewEncoder().Bytes([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("encode %q as %s: %w", text, e, err)
		}
		return out, nil
	default:
		out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("encode %q as %s: %w", text, e, err)
		}
		return out, nil
	}
}

// Decode converts raw file bytes to a UTF-8 string. Malformed input is
// replaced rather than rejected so a damaged log still renders.
func (e Encoding) Decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	switch e {
	case UTF8:
		if utf8.Valid(raw) {
			return string(raw)
		}
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	case UTF16LE, UTF16BE:
		out, err := unicode.UTF16(e.endian(), unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return strings.ToValidUTF8(string(raw), "\uFFFD")
		}
		return string(out)
	default:
		if isPlainASCII(raw) {
			return string(raw)
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return strings.ToValidUTF8(string(raw), "\uFFFD")
		}
		return string(out)
	}
}

func (e Encoding) endian() unicode.Endianness {
	if e == UTF16BE {
		return unicode.BigEndian
	}
	return unicode.LittleEndian
}

func isPlainASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
