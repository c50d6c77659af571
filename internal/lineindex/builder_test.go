package lineindex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kk-code-lab/rlog/internal/linecache"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/source"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

type harness struct {
	t       *testing.T
	b       *Builder
	results chan Result
}

func newHarness(t *testing.T, src source.Source, cfg Config) *harness {
	t.Helper()
	h := &harness{t: t, results: make(chan Result, 16)}
	h.b = New(src, cfg, linecache.New(64), func(res Result) { h.results <- res })
	return h
}

func writeLog(t *testing.T, content string) source.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return source.NewFile(path)
}

// await merges results until the newest request has been applied.
func (h *harness) await() (MergeOutcome, error) {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case res := <-h.results:
			out, err := h.b.Merge(res)
			if res.Issue == h.b.issue.Load() {
				return out, err
			}
			if out.Applied {
				h.t.Fatalf("stale result %d was applied", res.Issue)
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for build result")
		}
	}
}

func (h *harness) build(target int64, reload bool) MergeOutcome {
	h.t.Helper()
	if !h.b.Request(target, reload) {
		h.t.Fatalf("Request(%d, %v) was dropped", target, reload)
	}
	out, err := h.await()
	if err != nil {
		h.t.Fatalf("build(%d, %v): %v", target, reload, err)
	}
	return out
}

func numberedLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line%03d\n", i)
	}
	return b.String()
}

func lineAt(i int) scan.ByteRange {
	return scan.ByteRange{Begin: int64(8 * i), End: int64(8*i + 7)}
}

func allLines(t *testing.T, content string) []scan.ByteRange {
	t.Helper()
	var out []scan.ByteRange
	_, err := scan.FindLines(bytes.NewReader([]byte(content)), scan.Request{
		Limit:     int64(len(content)),
		FileEnd:   int64(len(content)),
		Encoding:  textenc.UTF8,
		Delimiter: []byte("\n"),
		Buffer:    make([]byte, 4096),
		AddLine: func(r scan.ByteRange, _ []byte) bool {
			out = append(out, r)
			return true
		},
	})
	if err != nil {
		t.Fatalf("FindLines: %v", err)
	}
	return out
}

func assertOrdered(t *testing.T, lines []scan.ByteRange) {
	t.Helper()
	for i := 1; i < len(lines); i++ {
		if lines[i].Begin <= lines[i-1].Begin || lines[i].Begin < lines[i-1].End {
			t.Fatalf("lines %d and %d out of order: %v %v", i-1, i, lines[i-1], lines[i])
		}
	}
}

func TestReloadScenario(t *testing.T) {
	h := newHarness(t, writeLog(t, "AAAA\nBBBB\nCCCC"), Config{AutoEncoding: true})
	out := h.build(0, true)

	if !out.Applied || out.Kind != KindReplace {
		t.Fatalf("outcome = %+v", out)
	}
	want := []scan.ByteRange{{Begin: 0, End: 4}, {Begin: 5, End: 9}, {Begin: 10, End: 14}}
	if got := h.b.Lines(); !slices.Equal(got, want) {
		t.Fatalf("Lines = %v want %v", got, want)
	}
	if h.b.Encoding() != textenc.UTF8 || h.b.Delimiter() != "\n" {
		t.Fatalf("detected %s %q", h.b.Encoding(), h.b.Delimiter())
	}
	if !h.b.AtStart() || !h.b.AtEnd() {
		t.Fatalf("AtStart=%v AtEnd=%v want both true", h.b.AtStart(), h.b.AtEnd())
	}
	if h.b.Reloading() {
		t.Fatalf("reload flag still set after merge")
	}
}

func TestReloadIsIdempotent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "entry %04d %s\n", i, strings.Repeat("x", i%13))
	}
	h := newHarness(t, writeLog(t, b.String()), Config{AutoEncoding: true, WindowBytes: 2000, MaxLines: 21})

	h.build(2500, true)
	first := slices.Clone(h.b.Lines())
	h.build(2500, true)
	second := h.b.Lines()

	if !slices.Equal(first, second) {
		t.Fatalf("reload changed index:\n%v\n%v", first, second)
	}
	if len(first) == 0 || len(first) > 21 {
		t.Fatalf("line count = %d", len(first))
	}
	assertOrdered(t, first)
}

func TestIncrementalAppendsMatchFullScan(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "%03d %s\n", i, strings.Repeat("x", i%17))
	}
	content := b.String()
	size := int64(len(content))
	h := newHarness(t, writeLog(t, content), Config{
		AutoEncoding: true,
		WindowBytes:  200,
		SpanBytes:    1 << 30,
		MaxLines:     1 << 20,
	})

	h.build(0, true)
	for target := int64(50); target < size; target += 50 {
		out := h.build(target, false)
		if out.Kind == KindReplace {
			t.Fatalf("target %d fell back to a full replace", target)
		}
	}
	h.build(size, false)

	want := allLines(t, content)
	if got := h.b.Lines(); !slices.Equal(got, want) {
		t.Fatalf("incremental index has %d lines, full scan %d", len(got), len(want))
	}
}

type recordingSource struct {
	data  []byte
	mu    sync.Mutex
	reads []scan.ByteRange
}

func (s *recordingSource) Name() string { return "memory" }
func (s *recordingSource) PathAt(int64) string { return "memory" }
func (s *recordingSource) Clear() error { return errors.New("read only") }
func (s *recordingSource) NewInstance() source.Source { return s }

func (s *recordingSource) Open() (source.Stream, error) {
	return &recordingStream{Reader: bytes.NewReader(s.data), src: s}, nil
}

func (s *recordingSource) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = nil
}

func (s *recordingSource) recorded() []scan.ByteRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reads)
}

type recordingStream struct {
	*bytes.Reader
	src *recordingSource
}

func (r *recordingStream) Read(p []byte) (int, error) {
	pos, _ := r.Reader.Seek(0, io.SeekCurrent)
	n, err := r.Reader.Read(p)
	if n > 0 {
		r.src.mu.Lock()
		r.src.reads = append(r.src.reads, scan.ByteRange{Begin: pos, End: pos + int64(n)})
		r.src.mu.Unlock()
	}
	return n, err
}

func (r *recordingStream) Size() (int64, error) { return r.Reader.Size(), nil }
func (r *recordingStream) Close() error { return nil }

func TestIncrementalMoveDoesNotRereadHead(t *testing.T) {
	src := &recordingSource{data: []byte("AAAA\nBBBB\nCCCC")}
	h := newHarness(t, src, Config{AutoEncoding: true, WindowBytes: 6, SpanBytes: 64})

	h.build(0, true)
	if got := h.b.Lines(); !slices.Equal(got, []scan.ByteRange{{Begin: 0, End: 4}, {Begin: 5, End: 9}}) {
		t.Fatalf("initial index = %v", got)
	}

	src.reset()
	out := h.build(10, false)
	if out.Kind != KindAppend {
		t.Fatalf("kind = %s want append", out.Kind)
	}
	if !slices.Contains(h.b.Lines(), scan.ByteRange{Begin: 10, End: 14}) {
		t.Fatalf("index %v lacks (10,14)", h.b.Lines())
	}
	head := scan.ByteRange{Begin: 0, End: 4}
	for _, r := range src.recorded() {
		if r.Overlaps(head) {
			t.Fatalf("read %v re-read bytes of the first line", r)
		}
	}
}

func TestPrependReportsRowDelta(t *testing.T) {
	h := newHarness(t, writeLog(t, numberedLines(100)), Config{
		AutoEncoding: true,
		WindowBytes:  80,
		SpanBytes:    800,
		MaxLines:     1000,
	})

	h.build(720, true)
	first := h.b.Lines()[0]
	if first != lineAt(85) {
		t.Fatalf("first line = %v want %v", first, lineAt(85))
	}

	out := h.build(660, false)
	if out.Kind != KindPrepend {
		t.Fatalf("kind = %s want prepend", out.Kind)
	}
	if out.RowDelta != 8 || out.Added != 8 {
		t.Fatalf("outcome = %+v want RowDelta 8 Added 8", out)
	}
	if got := h.b.Lines()[out.RowDelta]; got != first {
		t.Fatalf("row %d = %v want old first line %v", out.RowDelta, got, first)
	}
	assertOrdered(t, h.b.Lines())
}

func TestAppendTrimsHead(t *testing.T) {
	h := newHarness(t, writeLog(t, numberedLines(100)), Config{
		AutoEncoding: true,
		WindowBytes:  80,
		SpanBytes:    800,
		MaxLines:     10,
	})

	h.build(400, true)
	if got := h.b.Lines(); len(got) != 10 || got[0] != lineAt(45) {
		t.Fatalf("initial index = %v", got)
	}

	out := h.build(440, false)
	if out.Kind != KindAppend {
		t.Fatalf("kind = %s want append", out.Kind)
	}
	if out.RowDelta != -4 || out.Trimmed != 4 || out.Added != 4 {
		t.Fatalf("outcome = %+v want RowDelta -4 Trimmed 4 Added 4", out)
	}
	lines := h.b.Lines()
	if len(lines) != 10 || lines[0] != lineAt(49) || lines[9] != lineAt(58) {
		t.Fatalf("index after append = %v", lines)
	}
}

func TestDisjointMoveReplacesIndex(t *testing.T) {
	h := newHarness(t, writeLog(t, numberedLines(100)), Config{AutoEncoding: true, WindowBytes: 80})

	h.build(0, true)
	out := h.build(700, false)
	if out.Kind != KindReplace || !out.Reset || out.RowDelta != 0 {
		t.Fatalf("outcome = %+v want replace with reset", out)
	}
	if row := h.b.RowOf(700); row < 0 || h.b.Lines()[row] != lineAt(87) {
		t.Fatalf("RowOf(700) = %d", row)
	}
}

func TestNewerRequestSupersedes(t *testing.T) {
	h := newHarness(t, writeLog(t, numberedLines(1000)), Config{AutoEncoding: true, WindowBytes: 400})

	h.b.Request(0, true)
	h.b.Request(4000, true)
	out, err := h.await()
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if !out.Applied {
		t.Fatalf("newest result not applied")
	}
	if h.b.Viewpoint() != 4000 {
		t.Fatalf("Viewpoint = %d want 4000", h.b.Viewpoint())
	}
	if h.b.Reloading() {
		t.Fatalf("reload flag still set")
	}
}

func TestRequestDroppedDuringReload(t *testing.T) {
	h := newHarness(t, writeLog(t, numberedLines(10)), Config{AutoEncoding: true})

	if !h.b.Request(0, true) {
		t.Fatalf("reload request dropped")
	}
	if h.b.Request(16, false) {
		t.Fatalf("incremental request accepted while reloading")
	}
	if _, err := h.await(); err != nil {
		t.Fatalf("await: %v", err)
	}
	if !h.b.Request(16, false) {
		t.Fatalf("incremental request dropped after reload merged")
	}
	if _, err := h.await(); err != nil {
		t.Fatalf("await: %v", err)
	}
}

func TestMergeIgnoresRepeatedResult(t *testing.T) {
	h := newHarness(t, writeLog(t, "a\nb\n"), Config{AutoEncoding: true})
	h.b.Request(0, true)
	res := <-h.results
	if out, err := h.b.Merge(res); err != nil || !out.Applied {
		t.Fatalf("first merge = %+v, %v", out, err)
	}
	if out, _ := h.b.Merge(res); out.Applied {
		t.Fatalf("second merge of the same result applied")
	}
}

func TestLongLineReportsNoLines(t *testing.T) {
	content := strings.Repeat("x", 500) + "\ny\n"
	h := newHarness(t, writeLog(t, content), Config{AutoEncoding: true, BufferSize: 64})

	h.b.Request(0, true)
	_, err := h.await()
	var noLines *scan.NoLinesError
	if !errors.As(err, &noLines) {
		t.Fatalf("expected NoLinesError, got %v", err)
	}
	if h.b.Reloading() {
		t.Fatalf("reload flag still set after error")
	}
}

func TestMissingFile(t *testing.T) {
	src := source.NewFile(filepath.Join(t.TempDir(), "missing.log"))
	h := newHarness(t, src, Config{AutoEncoding: true})

	h.b.Request(0, true)
	_, err := h.await()
	if !errors.Is(err, source.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestFiltersSkipLines(t *testing.T) {
	filters := pattern.FilterList{{Pattern: pattern.MustCompile("DEBUG", pattern.Options{}), Action: pattern.Reject}}
	h := newHarness(t, writeLog(t, "INFO a\nDEBUG b\nINFO c\n"), Config{AutoEncoding: true, Filters: filters})

	h.build(0, true)
	want := []scan.ByteRange{{Begin: 0, End: 6}, {Begin: 15, End: 21}}
	if got := h.b.Lines(); !slices.Equal(got, want) {
		t.Fatalf("Lines = %v want %v", got, want)
	}
}

func TestCenterWindow(t *testing.T) {
	tests := []struct {
		center, size, window int64
		want                 scan.ByteRange
	}{
		{50, 100, 20, scan.ByteRange{Begin: 40, End: 60}},
		{2, 100, 20, scan.ByteRange{Begin: 0, End: 20}},
		{99, 100, 20, scan.ByteRange{Begin: 80, End: 100}},
		{10, 15, 20, scan.ByteRange{Begin: 0, End: 15}},
	}
	for _, tt := range tests {
		if got := centerWindow(tt.center, tt.size, tt.window); got != tt.want {
			t.Fatalf("centerWindow(%d, %d, %d) = %v want %v", tt.center, tt.size, tt.window, got, tt.want)
		}
	}
}
