package lineindex

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/source"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

// Invalidator is the part of the line cache a merge touches.
type Invalidator interface {
	InvalidateAll()
	InvalidateRange(r scan.ByteRange)
}

// Kind says how a result changes the index.
type Kind int

const (
	KindReplace Kind = iota
	KindPrepend
	KindAppend
	// KindNone only moves the viewpoint.
	KindNone
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindPrepend:
		return "prepend"
	case KindAppend:
		return "append"
	case KindNone:
		return "none"
	default:
		return "unknown"
	}
}

// Result is what a background build hands back to the owner. It is
// immutable once delivered.
type Result struct {
	Issue      int64
	Reload     bool
	Kind       Kind
	Lines      []scan.ByteRange
	Scanned    scan.ByteRange
	Viewpoint  int64
	FileLength int64
	Encoding   textenc.Encoding
	Delimiter  string
	// DataStart is where text begins after a byte order mark.
	DataStart int64
	Err       error
}

// MergeOutcome tells the viewer how to keep its scroll position.
type MergeOutcome struct {
	Applied bool
	Kind    Kind
	// RowDelta is added to every row the viewer holds.
	RowDelta int
	// Reset means old rows have no meaning in the new index.
	Reset   bool
	Added   int
	Trimmed int
}

// Builder owns the line index. Request and Merge and every accessor must be
// called from one owner goroutine; the scan itself runs in the background
// and only communicates through Result.
type Builder struct {
	src     source.Source
	cfg     Config
	cache   Invalidator
	deliver func(Result)

	issue     atomic.Int64
	reloading atomic.Bool
	merged    int64

	lines      []scan.ByteRange
	viewpoint  int64
	fileLength int64
	enc        textenc.Encoding
	delim      string
	delimLen   int
	dataStart  int64
	detected   bool
}

// New creates a Builder. deliver is called from a background goroutine and
// must hand the result over to the owner, which then calls Merge.
func New(src source.Source, cfg Config, cache Invalidator, deliver func(Result)) *Builder {
	cfg = cfg.withDefaults()
	return &Builder{
		src:     src,
		cfg:     cfg,
		cache:   cache,
		deliver: deliver,
		enc:     cfg.Encoding,
		delim:   cfg.RowDelimiter,
	}
}

type job struct {
	issue     int64
	target    int64
	reload    bool
	cfg       Config
	enc       textenc.Encoding
	delim     string
	dataStart int64

	hasIndex   bool
	first      scan.ByteRange
	last       scan.ByteRange
	indexRange scan.ByteRange
	before     int
	after      int

	fileLength    int64
	prevViewpoint int64
}

// Request starts a build around target. A non-reload request made while a
// reload is still running is dropped and Request returns false.
func (b *Builder) Request(target int64, reload bool) bool {
	if !reload && b.reloading.Load() {
		debuglog.Debugf("index: drop request target=%d during reload", target)
		return false
	}
	if !b.detected {
		reload = true
	}
	issue := b.issue.Add(1)
	if reload {
		b.reloading.Store(true)
	}

	j := job{
		issue:         issue,
		target:        target,
		reload:        reload,
		cfg:           b.cfg,
		enc:           b.enc,
		delim:         b.delim,
		dataStart:     b.dataStart,
		fileLength:    b.fileLength,
		prevViewpoint: b.viewpoint,
		indexRange:    scan.InvalidRange,
	}
	if n := len(b.lines); n > 0 {
		j.hasIndex = true
		j.first = b.lines[0]
		j.last = b.lines[n-1]
		j.indexRange = scan.ByteRange{Begin: j.first.Begin, End: j.last.End}
		pos := sort.Search(n, func(i int) bool { return b.lines[i].Begin > target })
		j.before = max(pos-1, 0)
		j.after = n - j.before
	}
	debuglog.Debugf("index: request issue=%d target=%d reload=%v lines=%d", issue, target, reload, len(b.lines))

	go b.run(j)
	return true
}

// Cancel abandons any build in flight.
func (b *Builder) Cancel() {
	b.issue.Add(1)
	b.reloading.Store(false)
}

func (b *Builder) current(issue int64) bool {
	return b.issue.Load() == issue
}

func (b *Builder) run(j job) {
	res, ok := b.build(j)
	if !ok || !b.current(j.issue) {
		debuglog.Debugf("index: issue=%d superseded", j.issue)
		return
	}
	if b.deliver != nil {
		b.deliver(res)
	}
}

var errSuperseded = errors.New("superseded")

func (b *Builder) build(j job) (Result, bool) {
	res := Result{Issue: j.issue, Reload: j.reload, Viewpoint: j.target, Scanned: scan.InvalidRange}

	stream, err := b.src.Open()
	if err != nil {
		res.Err = err
		return res, true
	}
	defer stream.Close()

	size, err := stream.Size()
	if err != nil {
		res.Err = err
		return res, true
	}
	res.FileLength = size
	target := min(max(j.target, 0), size)
	res.Viewpoint = target

	enc, delim, dataStart := j.enc, j.delim, j.dataStart
	if j.reload || delim == "" {
		enc, delim, dataStart, err = detect(stream, size, j.cfg)
		if err != nil {
			res.Err = err
			return res, true
		}
	}
	res.Encoding, res.Delimiter, res.DataStart = enc, delim, dataStart

	delimRaw, err := enc.Encode(delim)
	if err != nil {
		res.Err = fmt.Errorf("row delimiter: %w", err)
		return res, true
	}
	if !b.current(j.issue) {
		return res, false
	}

	s := &scanner{
		b:      b,
		issue:  j.issue,
		stream: stream,
		size:   size,
		enc:    enc,
		delim:  delimRaw,
		buf:    make([]byte, j.cfg.BufferSize),
		cfg:    j.cfg,
	}
	if s.dec, err = logline.NewDecoder(enc, logline.Options{}); err != nil {
		res.Err = err
		return res, true
	}

	window := centerWindow(target, size, j.cfg.WindowBytes)
	incremental := !j.reload && j.hasIndex && enc == j.enc && size >= j.fileLength &&
		touches(window, j.indexRange)

	if incremental {
		err = s.incremental(j, target, window, &res)
	} else {
		err = s.full(target, window, &res)
	}
	if errors.Is(err, errSuperseded) {
		return res, false
	}
	res.Err = err
	debuglog.Debugf("index: issue=%d kind=%s lines=%d scanned=%s size=%d err=%v",
		j.issue, res.Kind, len(res.Lines), res.Scanned, size, err)
	return res, true
}

func detect(stream source.Stream, size int64, cfg Config) (textenc.Encoding, string, int64, error) {
	sample := make([]byte, min(size, textenc.SampleSize))
	if len(sample) > 0 {
		if err := scan.ReadFull(stream, 0, sample); err != nil {
			return 0, "", 0, fmt.Errorf("read sample: %w", err)
		}
	}
	enc := cfg.Encoding
	if cfg.AutoEncoding {
		enc = textenc.Detect(sample)
	}
	delim := cfg.RowDelimiter
	if delim == "" {
		delim = textenc.DetectDelimiter(sample, enc)
	}
	var dataStart int64
	if textenc.HasBOM(sample, enc) {
		dataStart = int64(len(enc.BOM()))
	}
	return enc, delim, dataStart, nil
}

type scanner struct {
	b      *Builder
	issue  int64
	stream source.Stream
	size   int64
	enc    textenc.Encoding
	delim  []byte
	buf    []byte
	cfg    Config
	dec    *logline.Decoder
}

// lines collects up to budget lines kept by the filters.
func (s *scanner) lines(start, limit int64, backward bool, budget int) ([]scan.ByteRange, error) {
	if budget <= 0 {
		return nil, nil
	}
	var out []scan.ByteRange
	status, err := scan.FindLines(s.stream, scan.Request{
		Start:     start,
		Limit:     limit,
		FileEnd:   s.size,
		Backward:  backward,
		Encoding:  s.enc,
		Delimiter: s.delim,
		Buffer:    s.buf,
		AddLine: func(r scan.ByteRange, data []byte) bool {
			if !s.cfg.Filters.Empty() && !s.cfg.Filters.Passes(s.dec.Text(data)) {
				return true
			}
			out = append(out, r)
			return len(out) < budget
		},
		Progress: func(int64, int64) bool {
			return s.b.current(s.issue)
		},
	})
	if err != nil {
		return nil, err
	}
	if status == scan.StatusCancelled || !s.b.current(s.issue) {
		return nil, errSuperseded
	}
	if backward {
		slices.Reverse(out)
	}
	return out, nil
}

func (s *scanner) full(target int64, window scan.ByteRange, res *Result) error {
	start, err := scan.FindLineStart(s.stream, target, s.size, s.enc, s.delim, s.buf)
	if err != nil {
		return err
	}
	if !s.b.current(s.issue) {
		return errSuperseded
	}

	maxLines := s.cfg.MaxLines
	half := maxLines / 2
	fwdLimit := max(window.End, start+1)
	var back, fwd []scan.ByteRange
	if start-window.Begin <= window.End-start {
		if back, err = s.lines(start, window.Begin, true, half); err != nil {
			return err
		}
		if fwd, err = s.lines(start, fwdLimit, false, maxLines-len(back)); err != nil {
			return err
		}
	} else {
		if fwd, err = s.lines(start, fwdLimit, false, maxLines-half); err != nil {
			return err
		}
		if back, err = s.lines(start, window.Begin, true, maxLines-len(fwd)); err != nil {
			return err
		}
	}

	res.Kind = KindReplace
	res.Lines = append(back, fwd...)
	res.Scanned = spanOf(res.Lines)
	return nil
}

func (s *scanner) incremental(j job, target int64, window scan.ByteRange, res *Result) error {
	half := s.cfg.MaxLines / 2
	res.Kind = KindNone

	if target >= j.prevViewpoint {
		grown := s.size > j.fileLength
		if !grown && window.End <= j.last.End+int64(len(s.delim)) {
			return nil
		}
		from := j.last.Begin
		lines, err := s.lines(from, max(window.End, from+1), false, max(half-j.after, 0)+1)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		res.Kind = KindAppend
		res.Lines = lines
		res.Scanned = scan.ByteRange{Begin: from, End: max(lines[len(lines)-1].End, from)}
		return nil
	}

	to := j.first.Begin
	if window.Begin >= to {
		return nil
	}
	lines, err := s.lines(to, window.Begin, true, max(half-j.before, 0))
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	res.Kind = KindPrepend
	res.Lines = lines
	res.Scanned = scan.ByteRange{Begin: lines[0].Begin, End: to}
	return nil
}

// Merge applies a delivered result. It must run on the owner goroutine.
func (b *Builder) Merge(res Result) (MergeOutcome, error) {
	if res.Issue != b.issue.Load() || res.Issue == b.merged {
		debuglog.Debugf("index: ignore stale issue=%d current=%d", res.Issue, b.issue.Load())
		return MergeOutcome{}, nil
	}
	b.merged = res.Issue
	if res.Reload {
		b.reloading.Store(false)
	}
	if res.Err != nil {
		debuglog.Debugf("index: issue=%d error: %v", res.Issue, res.Err)
		return MergeOutcome{}, res.Err
	}

	out := MergeOutcome{Applied: true, Kind: res.Kind}
	switch res.Kind {
	case KindReplace:
		out.RowDelta, out.Reset = rowShift(b.lines, res.Lines)
		out.Added = len(res.Lines)
		b.lines = res.Lines
		if b.cache != nil {
			b.cache.InvalidateAll()
		}
	case KindPrepend:
		out = b.prepend(res, out)
	case KindAppend:
		out = b.append(res, out)
	}

	b.viewpoint = res.Viewpoint
	b.fileLength = res.FileLength
	b.enc = res.Encoding
	b.delim = res.Delimiter
	b.dataStart = res.DataStart
	if raw, err := res.Encoding.Encode(res.Delimiter); err == nil {
		b.delimLen = len(raw)
	}
	b.detected = true
	debuglog.Debugf("index: merged issue=%d kind=%s delta=%d reset=%v lines=%d", res.Issue, out.Kind, out.RowDelta, out.Reset, len(b.lines))
	return out, nil
}

func (b *Builder) prepend(res Result, out MergeOutcome) MergeOutcome {
	if len(res.Lines) == 0 {
		return out
	}
	oldFirst := int64(-1)
	if len(b.lines) > 0 {
		oldFirst = b.lines[0].Begin
	}
	lastNew := res.Lines[len(res.Lines)-1].Begin
	k := sort.Search(len(b.lines), func(i int) bool { return b.lines[i].Begin > lastNew })

	merged := make([]scan.ByteRange, 0, len(res.Lines)+len(b.lines)-k)
	merged = append(merged, res.Lines...)
	merged = append(merged, b.lines[k:]...)

	keep := len(merged)
	for keep > 1 {
		last := merged[keep-1]
		if last.Begin <= res.Viewpoint {
			break
		}
		if keep <= b.cfg.MaxLines && last.End-merged[0].Begin <= b.cfg.SpanBytes {
			break
		}
		keep--
	}
	out.Trimmed = len(merged) - keep
	out.Added = len(res.Lines) - k
	b.lines = merged[:keep:keep]
	if oldFirst >= 0 {
		out.RowDelta = sort.Search(len(b.lines), func(i int) bool { return b.lines[i].Begin >= oldFirst })
	}
	if b.cache != nil {
		b.cache.InvalidateRange(res.Scanned)
	}
	return out
}

func (b *Builder) append(res Result, out MergeOutcome) MergeOutcome {
	if len(res.Lines) == 0 {
		return out
	}
	firstNew := res.Lines[0].Begin
	k := sort.Search(len(b.lines), func(i int) bool { return b.lines[i].Begin >= firstNew })

	merged := make([]scan.ByteRange, 0, k+len(res.Lines))
	merged = append(merged, b.lines[:k]...)
	merged = append(merged, res.Lines...)

	drop := 0
	for drop < len(merged)-1 {
		front := merged[drop]
		if front.End >= res.Viewpoint {
			break
		}
		if len(merged)-drop <= b.cfg.MaxLines && merged[len(merged)-1].End-front.Begin <= b.cfg.SpanBytes {
			break
		}
		drop++
	}
	out.Trimmed = drop
	out.Added = len(res.Lines) - (len(b.lines) - k)
	out.RowDelta = -drop
	b.lines = slices.Clone(merged[drop:])
	if b.cache != nil {
		b.cache.InvalidateRange(res.Scanned)
	}
	return out
}

// rowShift finds where the old first line lands in the new index.
func rowShift(old, lines []scan.ByteRange) (int, bool) {
	if len(old) == 0 || len(lines) == 0 {
		return 0, true
	}
	oldRange := scan.ByteRange{Begin: old[0].Begin, End: old[len(old)-1].End}
	if !touches(oldRange, spanOf(lines)) {
		return 0, true
	}
	first := old[0].Begin
	return sort.Search(len(lines), func(i int) bool { return lines[i].Begin >= first }), false
}

func spanOf(lines []scan.ByteRange) scan.ByteRange {
	if len(lines) == 0 {
		return scan.InvalidRange
	}
	return scan.ByteRange{Begin: lines[0].Begin, End: lines[len(lines)-1].End}
}

// touches is Overlaps that also accepts ranges sharing an edge.
func touches(a, b scan.ByteRange) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Begin <= b.End && b.Begin <= a.End
}

// centerWindow returns a window of size bytes around center, shifted to stay
// inside [0, fileSize).
func centerWindow(center, fileSize, size int64) scan.ByteRange {
	if size >= fileSize {
		return scan.ByteRange{Begin: 0, End: fileSize}
	}
	begin := center - size/2
	end := begin + size
	if begin < 0 {
		end -= begin
		begin = 0
	}
	if end > fileSize {
		begin -= end - fileSize
		end = fileSize
	}
	return scan.ByteRange{Begin: max(begin, 0), End: end}
}

// SetConfig replaces the configuration used by the next Request.
func (b *Builder) SetConfig(cfg Config) {
	b.cfg = cfg.withDefaults()
	if !cfg.AutoEncoding {
		b.enc = cfg.Encoding
	}
	if cfg.RowDelimiter != "" {
		b.delim = cfg.RowDelimiter
	}
}

func (b *Builder) Config() Config {
	return b.cfg
}

// Lines returns the index. The slice must not be modified.
func (b *Builder) Lines() []scan.ByteRange {
	return b.lines
}

func (b *Builder) LineCount() int {
	return len(b.lines)
}

func (b *Builder) Line(row int) (scan.ByteRange, bool) {
	if row < 0 || row >= len(b.lines) {
		return scan.InvalidRange, false
	}
	return b.lines[row], true
}

// RowOf returns the row of the last line starting at or before offset, or
// -1 for an empty index.
func (b *Builder) RowOf(offset int64) int {
	if len(b.lines) == 0 {
		return -1
	}
	pos := sort.Search(len(b.lines), func(i int) bool { return b.lines[i].Begin > offset })
	return max(pos-1, 0)
}

// Range is the span from the first line start to the last line end.
func (b *Builder) Range() scan.ByteRange {
	return spanOf(b.lines)
}

func (b *Builder) Viewpoint() int64 {
	return b.viewpoint
}

func (b *Builder) FileLength() int64 {
	return b.fileLength
}

func (b *Builder) Encoding() textenc.Encoding {
	return b.enc
}

func (b *Builder) Delimiter() string {
	return b.delim
}

// Detected reports whether encoding and delimiter are known.
func (b *Builder) Detected() bool {
	return b.detected
}

func (b *Builder) Reloading() bool {
	return b.reloading.Load()
}

// AtStart reports whether the first indexed line is the first line of the
// file, ignoring lines hidden by filters.
func (b *Builder) AtStart() bool {
	return len(b.lines) == 0 || b.lines[0].Begin <= b.dataStart
}

// AtEnd reports whether the last indexed line reaches the end of the file
// as it was last measured.
func (b *Builder) AtEnd() bool {
	if len(b.lines) == 0 {
		return true
	}
	return b.lines[len(b.lines)-1].End+int64(b.delimLen) >= b.fileLength
}
