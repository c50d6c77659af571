package textenc

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// SampleSize is how much of the file head detection looks at.
	SampleSize = 64 * 1024

	nonPrintableThresholdPercent = 30
	utf16ZeroPercent             = 40
)

// Row delimiter spellings.
const (
	LF   = "\n"
	CRLF = "\r\n"
	CR   = "\r"
)

var binaryExtensions = map[string]struct{}{
	".7z":    {},
	".bin":   {},
	".bz2":   {},
	".class": {},
	".dll":   {},
	".dylib": {},
	".exe":   {},
	".gif":   {},
	".gz":    {},
	".iso":   {},
	".jar":   {},
	".jpeg":  {},
	".jpg":   {},
	".mp4":   {},
	".pdf":   {},
	".png":   {},
	".so":    {},
	".tar":   {},
	".tgz":   {},
	".wasm":  {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}

// Detect guesses the encoding of a file from its first bytes.
//
// A byte order mark wins. Without one, a sample whose odd (or even) bytes are
// mostly zero is taken as UTF-16 LE (BE); a sample that is valid UTF-8 is
// UTF-8; anything else is treated as a single-byte code page.
func Detect(sample []byte) Encoding {
	if enc, ok := detectBOM(sample); ok {
		return enc
	}
	if enc, ok := detectUTF16(sample); ok {
		return enc
	}
	if validUTF8Prefix(sample) {
		return UTF8
	}
	return ASCII
}

// HasBOM reports whether sample starts with the byte order mark of enc.
func HasBOM(sample []byte, enc Encoding) bool {
	bom := enc.BOM()
	return len(bom) > 0 && bytes.HasPrefix(sample, bom)
}

// DetectDelimiter returns the row delimiter used by the first line break in
// sample (decoded with enc). LF is assumed when the sample has no line break.
func DetectDelimiter(sample []byte, enc Encoding) string {
	text := enc.Decode(sample)
	idx := strings.IndexAny(text, "\r\n")
	if idx < 0 {
		return LF
	}
	if text[idx] == '\n' {
		return LF
	}
	if idx+1 < len(text) && text[idx+1] == '\n' {
		return CRLF
	}
	if idx+1 == len(text) {
		// a CR that ends the sample may be the first half of CRLF
		return CRLF
	}
	return CR
}

// ParseDelimiter resolves names like "lf" or "crlf" and the escapes \t, \n,
// \r in literal delimiters. An empty result means "detect".
func ParseDelimiter(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return ""
	case "lf", "unix":
		return LF
	case "crlf", "dos", "windows":
		return CRLF
	case "cr", "mac":
		return CR
	case "tab":
		return "\t"
	}
	return unescape(name)
}

// LooksBinary reports whether a file is unlikely to be a text log, judging
// by extension first and then by sniffing sample.
func LooksBinary(path string, sample []byte) bool {
	if path != "" {
		if _, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			return true
		}
	}
	if len(sample) == 0 {
		return false
	}
	if _, ok := detectBOM(sample); ok {
		return false
	}
	if _, ok := detectUTF16(sample); ok {
		return false
	}
	if bytes.IndexByte(sample, 0x00) != -1 {
		return true
	}
	if validUTF8Prefix(sample) {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		if !isCommonTextByte(b) {
			nonPrintable++
		}
	}
	return nonPrintable*100/len(sample) >= nonPrintableThresholdPercent
}

func detectBOM(sample []byte) (Encoding, bool) {
	switch {
	case bytes.HasPrefix(sample, bomUTF8):
		return UTF8, true
	case bytes.HasPrefix(sample, bomUTF16LE):
		return UTF16LE, true
	case bytes.HasPrefix(sample, bomUTF16BE):
		return UTF16BE, true
	}
	return ASCII, false
}

func detectUTF16(sample []byte) (Encoding, bool) {
	pairs := len(sample) / 2
	if pairs < 2 {
		return ASCII, false
	}
	evenZero, oddZero := 0, 0
	for i := 0; i+1 < len(sample); i += 2 {
		if sample[i] == 0 {
			evenZero++
		}
		if sample[i+1] == 0 {
			oddZero++
		}
	}
	switch {
	case oddZero*100/pairs >= utf16ZeroPercent && evenZero*100/pairs < 5:
		return UTF16LE, true
	case evenZero*100/pairs >= utf16ZeroPercent && oddZero*100/pairs < 5:
		return UTF16BE, true
	}
	return ASCII, false
}

// validUTF8Prefix is utf8.Valid that tolerates a sequence cut off by the
// end of the sample.
func validUTF8Prefix(sample []byte) bool {
	end := len(sample)
	for i := end - 1; i >= 0 && i >= end-utf8.UTFMax; i-- {
		if sample[i]&0xC0 != 0x80 {
			if !utf8.FullRune(sample[i:]) {
				end = i
			}
			break
		}
	}
	return utf8.Valid(sample[:end])
}

func isCommonTextByte(b byte) bool {
	switch {
	case b == 0x09 || b == 0x0A || b == 0x0D:
		return true
	case b >= 0x20 && b <= 0x7E:
		return true
	case b == 0x1B:
		return true
	case b >= 0x80:
		return true
	default:
		return false
	}
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	r := strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r", `\\`, `\`)
	return r.Replace(s)
}
