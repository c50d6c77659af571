package textenc

import (
	"bytes"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestDetectByteOrderMarks(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   Encoding
	}{
		{"utf-8 bom", []byte{0xEF, 0xBB, 0xBF, 'a', '\n'}, UTF8},
		{"utf-16le bom", []byte{0xFF, 0xFE, 0x41, 0x00, 0x0A, 0x00}, UTF16LE},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0x00, 0x41, 0x00, 0x0A}, UTF16BE},
		{"plain ascii", []byte("hello\nworld\n"), UTF8},
		{"utf-8 text", []byte("zażółć\n"), UTF8},
		{"latin1 text", []byte{'c', 'a', 'f', 0xE9, '\n'}, ASCII},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.sample); got != tt.want {
				t.Fatalf("Detect(%v) = %s want %s", tt.sample, got, tt.want)
			}
		})
	}
}

func TestDetectUTF16WithoutBOM(t *testing.T) {
	le, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte("INFO started\nWARN slow\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := Detect(le); got != UTF16LE {
		t.Fatalf("Detect(le) = %s want utf-16le", got)
	}

	be, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte("INFO started\nWARN slow\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := Detect(be); got != UTF16BE {
		t.Fatalf("Detect(be) = %s want utf-16be", got)
	}
}

func TestDetectToleratesTruncatedUTF8Tail(t *testing.T) {
	sample := []byte("ok ż")
	sample = sample[:len(sample)-1]
	if got := Detect(sample); got != UTF8 {
		t.Fatalf("Detect(truncated) = %s want utf-8", got)
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"lf", "a\nb\n", LF},
		{"crlf", "a\r\nb\r\n", CRLF},
		{"cr", "a\rb\r", CR},
		{"none", "single line", LF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter([]byte(tt.text), UTF8); got != tt.want {
				t.Fatalf("DetectDelimiter(%q) = %q want %q", tt.text, got, tt.want)
			}
		})
	}

	encoded, err := UTF16LE.Encode("first\r\nsecond")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := DetectDelimiter(encoded, UTF16LE); got != CRLF {
		t.Fatalf("DetectDelimiter(utf-16le) = %q want CRLF", got)
	}
}

func TestEncodeDelimiter(t *testing.T) {
	tests := []struct {
		enc  Encoding
		text string
		want []byte
	}{
		{UTF8, "\n", []byte{0x0A}},
		{ASCII, "\r\n", []byte{0x0D, 0x0A}},
		{UTF16LE, "\n", []byte{0x0A, 0x00}},
		{UTF16BE, "\r\n", []byte{0x00, 0x0D, 0x00, 0x0A}},
	}
	for _, tt := range tests {
		got, err := tt.enc.Encode(tt.text)
		if err != nil {
			t.Fatalf("%s.Encode(%q): %v", tt.enc, tt.text, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Fatalf("%s.Encode(%q) = %v want %v", tt.enc, tt.text, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	if got := ASCII.Decode([]byte{'c', 'a', 'f', 0xE9}); got != "café" {
		t.Fatalf("ASCII.Decode = %q want café", got)
	}
	if got := UTF16LE.Decode([]byte{0x41, 0x00, 0x42, 0x00}); got != "AB" {
		t.Fatalf("UTF16LE.Decode = %q want AB", got)
	}
	if got := UTF16BE.Decode([]byte{0x00, 0x41, 0x00, 0x42}); got != "AB" {
		t.Fatalf("UTF16BE.Decode = %q want AB", got)
	}
	if got := UTF8.Decode([]byte{'a', 0xFF, 'b'}); got != "a\uFFFDb" {
		t.Fatalf("UTF8.Decode(invalid) = %q", got)
	}
}

func TestParse(t *testing.T) {
	for name, want := range map[string]Encoding{
		"UTF-8":    UTF8,
		"utf16le":  UTF16LE,
		"utf-16be": UTF16BE,
		"latin1":   ASCII,
	} {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %s want %s", name, got, want)
		}
	}
	if _, err := Parse("ebcdic"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := map[string]string{
		"":     "",
		"auto": "",
		"LF":   "\n",
		"crlf": "\r\n",
		"cr":   "\r",
		`\t`:   "\t",
		"|":    "|",
		`;\n`:  ";\n",
	}
	for in, want := range tests {
		if got := ParseDelimiter(in); got != want {
			t.Fatalf("ParseDelimiter(%q) = %q want %q", in, got, want)
		}
	}
}

func TestLooksBinary(t *testing.T) {
	if !LooksBinary("archive.zip", []byte("PK")) {
		t.Fatalf("expected zip extension to be binary")
	}
	if LooksBinary("app.log", []byte("2024-01-01 INFO ok\n")) {
		t.Fatalf("expected log text to be text")
	}
	if !LooksBinary("dump.log", []byte{0x01, 0x00, 0x02, 0x03, 0x00, 0x05}) {
		t.Fatalf("expected NUL bytes to be binary")
	}
	le := []byte{0xFF, 0xFE, 0x41, 0x00, 0x0D, 0x00, 0x0A, 0x00}
	if LooksBinary("config.ini", le) {
		t.Fatalf("expected UTF-16 LE content to be treated as text")
	}
}
