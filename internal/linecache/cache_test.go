package linecache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/scan"
)

func plain(start int64, raw []byte) logline.Line {
	return logline.Line{Start: start, Columns: []string{string(raw)}, Highlight: -1}
}

func TestGetHitsAndMisses(t *testing.T) {
	data := []byte("AAAA\nBBBB\nCCCC")
	r := bytes.NewReader(data)
	c := New(8)

	line, err := c.Get(r, scan.ByteRange{Begin: 5, End: 9}, plain)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if line.Columns[0] != "BBBB" {
		t.Fatalf("line = %q want BBBB", line.Columns[0])
	}
	if _, err := c.Get(r, scan.ByteRange{Begin: 5, End: 9}, plain); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := c.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Fatalf("stats = %+v want 1 hit 1 miss", got)
	}
}

func TestGetCollisionOverwrites(t *testing.T) {
	data := []byte("AAAA\nBBBB\nCCCC")
	r := bytes.NewReader(data)
	c := New(5)

	if _, err := c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// 10 mod 5 == 0 mod 5
	line, err := c.Get(r, scan.ByteRange{Begin: 10, End: 14}, plain)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if line.Columns[0] != "CCCC" {
		t.Fatalf("line = %q want CCCC", line.Columns[0])
	}
	line, _ = c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain)
	if line.Columns[0] != "AAAA" {
		t.Fatalf("line = %q want AAAA", line.Columns[0])
	}
	if got := c.Stats(); got.Misses != 3 {
		t.Fatalf("misses = %d want 3", got.Misses)
	}
}

func TestInvalidateRange(t *testing.T) {
	data := []byte("AAAA\nBBBB\nCCCC")
	c := New(64)
	r := bytes.NewReader(data)
	for _, br := range []scan.ByteRange{{Begin: 0, End: 4}, {Begin: 5, End: 9}, {Begin: 10, End: 14}} {
		if _, err := c.Get(r, br, plain); err != nil {
			t.Fatalf("Get %v: %v", br, err)
		}
	}

	changed := []byte("AAAA\nXXXX\nCCCC")
	c.InvalidateRange(scan.ByteRange{Begin: 5, End: 10})
	r = bytes.NewReader(changed)

	line, _ := c.Get(r, scan.ByteRange{Begin: 5, End: 9}, plain)
	if line.Columns[0] != "XXXX" {
		t.Fatalf("stale line %q inside invalidated range", line.Columns[0])
	}
	before := c.Stats().Hits
	_, _ = c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain)
	_, _ = c.Get(r, scan.ByteRange{Begin: 10, End: 14}, plain)
	if got := c.Stats().Hits - before; got != 2 {
		t.Fatalf("hits outside range = %d want 2", got)
	}
}

func TestInvalidateAllAndResize(t *testing.T) {
	data := []byte("AAAA\nBBBB")
	r := bytes.NewReader(data)
	c := New(4)
	_, _ = c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain)
	c.InvalidateAll()
	_, _ = c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain)
	if got := c.Stats(); got.Hits != 0 || got.Misses != 2 {
		t.Fatalf("stats after InvalidateAll = %+v", got)
	}

	c.Resize(16)
	if c.Capacity() != 16 {
		t.Fatalf("Capacity = %d want 16", c.Capacity())
	}
	_, _ = c.Get(r, scan.ByteRange{Begin: 0, End: 4}, plain)
	if got := c.Stats(); got.Misses != 3 {
		t.Fatalf("misses after Resize = %d want 3", got.Misses)
	}
}

func TestGetShortRead(t *testing.T) {
	c := New(4)
	_, err := c.Get(bytes.NewReader([]byte("abc")), scan.ByteRange{Begin: 0, End: 10}, plain)
	var short *scan.ShortReadError
	if !errors.As(err, &short) {
		t.Fatalf("expected ShortReadError, got %v", err)
	}
}
