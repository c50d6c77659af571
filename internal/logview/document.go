// Package logview ties a source, its line index and the line cache into the
// document the viewer and the CLI read rows from.
package logview

import (
	"context"
	"errors"
	"fmt"

	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/lineindex"
	"github.com/kk-code-lab/rlog/internal/linecache"
	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/search"
	"github.com/kk-code-lab/rlog/internal/source"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

// ErrNoDeliveryQueue is returned by Await when the document was opened
// with an external deliver func.
var ErrNoDeliveryQueue = errors.New("logview: results are delivered externally")

// Options configure a Document.
type Options struct {
	Index      lineindex.Config
	CacheSlots int

	ColumnDelimiter string
	TabWidth        int
	Sanitize        bool
	Highlights      pattern.HighlightList
}

// Document is owned by a single goroutine. Only the background builds it
// starts run elsewhere, and they hand results back through deliver.
type Document struct {
	src     source.Source
	opts    Options
	builder *lineindex.Builder
	cache   *linecache.Cache
	dec     *logline.Decoder
	stream  source.Stream
	results chan lineindex.Result
}

// Open creates a Document for src. Nothing is read until Request. When
// deliver is nil results are queued internally and collected with Await.
func Open(src source.Source, opts Options, deliver func(lineindex.Result)) *Document {
	d := &Document{
		src:   src,
		opts:  opts,
		cache: linecache.New(opts.CacheSlots),
	}
	if deliver == nil {
		d.results = make(chan lineindex.Result, 16)
		deliver = func(res lineindex.Result) { d.results <- res }
	}
	d.builder = lineindex.New(src, opts.Index, d.cache, deliver)
	return d
}

func (d *Document) Source() source.Source {
	return d.src
}

// Close cancels pending builds and releases the read stream.
func (d *Document) Close() error {
	d.builder.Cancel()
	return d.closeStream()
}

// Request starts an index build around target.
func (d *Document) Request(target int64, reload bool) bool {
	return d.builder.Request(target, reload)
}

// Await waits for the next result of an internally queued Document.
func (d *Document) Await(ctx context.Context) (lineindex.Result, error) {
	if d.results == nil {
		return lineindex.Result{}, ErrNoDeliveryQueue
	}
	select {
	case res := <-d.results:
		return res, nil
	case <-ctx.Done():
		return lineindex.Result{}, ctx.Err()
	}
}

// Build requests a build and merges results until that build lands. It only
// works for internally queued Documents and is meant for one-shot callers.
func (d *Document) Build(ctx context.Context, target int64, reload bool) (lineindex.MergeOutcome, error) {
	if d.results == nil {
		return lineindex.MergeOutcome{}, ErrNoDeliveryQueue
	}
	if !d.Request(target, reload) {
		return lineindex.MergeOutcome{}, errors.New("logview: build dropped during reload")
	}
	for {
		res, err := d.Await(ctx)
		if err != nil {
			d.builder.Cancel()
			return lineindex.MergeOutcome{}, err
		}
		out, err := d.Merge(res)
		if err != nil || out.Applied {
			return out, err
		}
	}
}

// Merge applies a build result. A reload reopens the read stream and a
// changed encoding rebuilds the decoder.
func (d *Document) Merge(res lineindex.Result) (lineindex.MergeOutcome, error) {
	out, err := d.builder.Merge(res)
	if err != nil || !out.Applied {
		return out, err
	}
	if res.Reload {
		_ = d.closeStream()
	}
	if d.dec == nil || d.dec.Encoding() != res.Encoding {
		if err := d.rebuildDecoder(); err != nil {
			return out, err
		}
		d.cache.InvalidateAll()
	}
	return out, nil
}

func (d *Document) rebuildDecoder() error {
	dec, err := logline.NewDecoder(d.builder.Encoding(), logline.Options{
		ColumnDelimiter: d.opts.ColumnDelimiter,
		TabWidth:        d.opts.TabWidth,
		Sanitize:        d.opts.Sanitize,
		Highlights:      d.opts.Highlights,
	})
	if err != nil {
		return err
	}
	d.dec = dec
	return nil
}

func (d *Document) readStream() (source.Stream, error) {
	if d.stream != nil {
		return d.stream, nil
	}
	stream, err := d.src.Open()
	if err != nil {
		return nil, err
	}
	d.stream = stream
	return stream, nil
}

func (d *Document) closeStream() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}

// ReadLine returns the decoded line at row, served from the cache when
// possible.
func (d *Document) ReadLine(row int) (logline.Line, error) {
	r, ok := d.builder.Line(row)
	if !ok {
		return logline.Line{}, fmt.Errorf("row %d out of range [0,%d)", row, d.builder.LineCount())
	}
	if d.dec == nil {
		if err := d.rebuildDecoder(); err != nil {
			return logline.Line{}, err
		}
	}
	stream, err := d.readStream()
	if err != nil {
		return logline.Line{}, err
	}
	line, err := d.cache.Get(stream, r, d.dec.Decode)
	if err != nil {
		debuglog.Debugf("logview: read row=%d range=%s: %v", row, r, err)
		// the file may have been replaced underneath the open handle
		_ = d.closeStream()
		return logline.Line{}, err
	}
	return line, nil
}

func (d *Document) LineCount() int {
	return d.builder.LineCount()
}

func (d *Document) RangeAt(row int) (scan.ByteRange, bool) {
	return d.builder.Line(row)
}

// Span covers every indexed line.
func (d *Document) Span() scan.ByteRange {
	return d.builder.Range()
}

func (d *Document) RowOf(offset int64) int {
	return d.builder.RowOf(offset)
}

func (d *Document) Viewpoint() int64 {
	return d.builder.Viewpoint()
}

// FileLength is the length measured by the last merged build.
func (d *Document) FileLength() int64 {
	return d.builder.FileLength()
}

// Size measures the current length of the source.
func (d *Document) Size() (int64, error) {
	stream, err := d.readStream()
	if err != nil {
		return 0, err
	}
	size, err := stream.Size()
	if err != nil {
		_ = d.closeStream()
		return 0, err
	}
	return size, nil
}

func (d *Document) Encoding() textenc.Encoding {
	return d.builder.Encoding()
}

func (d *Document) Delimiter() string {
	return d.builder.Delimiter()
}

func (d *Document) Detected() bool {
	return d.builder.Detected()
}

func (d *Document) AtStart() bool {
	return d.builder.AtStart()
}

func (d *Document) AtEnd() bool {
	return d.builder.AtEnd()
}

func (d *Document) PathAt(offset int64) string {
	return d.src.PathAt(offset)
}

func (d *Document) Filters() pattern.FilterList {
	return d.builder.Config().Filters
}

// SetFilters replaces the filter list and reloads around target.
func (d *Document) SetFilters(filters pattern.FilterList, target int64) bool {
	cfg := d.builder.Config()
	cfg.Filters = filters
	d.opts.Index.Filters = filters
	d.builder.SetConfig(cfg)
	return d.builder.Request(target, true)
}

// SetHighlights swaps highlight rules; only the decoded lines change.
func (d *Document) SetHighlights(highlights pattern.HighlightList) error {
	d.opts.Highlights = highlights
	if err := d.rebuildDecoder(); err != nil {
		return err
	}
	d.cache.InvalidateAll()
	return nil
}

// IndexConfig returns the settings builds currently run with.
func (d *Document) IndexConfig() lineindex.Config {
	return d.builder.Config()
}

// Reconfigure replaces the index settings and reloads around target.
func (d *Document) Reconfigure(cfg lineindex.Config, target int64) bool {
	d.opts.Index = cfg
	d.builder.SetConfig(cfg)
	return d.builder.Request(target, true)
}

// ResizeCache changes how many decoded lines are kept.
func (d *Document) ResizeCache(slots int) {
	d.opts.CacheSlots = slots
	d.cache.Resize(slots)
}

func (d *Document) CacheStats() linecache.Stats {
	return d.cache.Stats()
}

// Clear truncates the source and reloads from the top.
func (d *Document) Clear() error {
	if err := d.src.Clear(); err != nil {
		return err
	}
	_ = d.closeStream()
	d.builder.Request(0, true)
	return nil
}

// FindOptions prepares a search with the document's encoding, delimiter and
// filters. FileEnd is left to the searcher, which measures the file itself.
func (d *Document) FindOptions(pat pattern.Pattern, start int64, backward, skipCurrent bool) (search.FindOptions, error) {
	delim, err := d.encodedDelimiter()
	if err != nil {
		return search.FindOptions{}, err
	}
	return search.FindOptions{
		Pattern:     pat,
		Filters:     d.builder.Config().Filters,
		Start:       start,
		Backward:    backward,
		SkipCurrent: skipCurrent,
		Encoding:    d.builder.Encoding(),
		Delimiter:   delim,
		BufferSize:  d.builder.Config().BufferSize,
	}, nil
}

// ExportOptions prepares an export of ranges. Output lines are not
// sanitized or tab-expanded.
func (d *Document) ExportOptions(ranges []scan.ByteRange, rowDelim, columnDelim string) (search.ExportOptions, error) {
	delim, err := d.encodedDelimiter()
	if err != nil {
		return search.ExportOptions{}, err
	}
	dec, err := logline.NewDecoder(d.builder.Encoding(), logline.Options{ColumnDelimiter: d.opts.ColumnDelimiter})
	if err != nil {
		return search.ExportOptions{}, err
	}
	return search.ExportOptions{
		Ranges:          ranges,
		Filters:         d.builder.Config().Filters,
		Encoding:        d.builder.Encoding(),
		Delimiter:       delim,
		Decoder:         dec,
		RowDelimiter:    rowDelim,
		ColumnDelimiter: columnDelim,
		BufferSize:      d.builder.Config().BufferSize,
		FileEnd:         d.builder.FileLength(),
	}, nil
}

func (d *Document) encodedDelimiter() ([]byte, error) {
	if !d.builder.Detected() {
		return nil, errors.New("logview: document not indexed yet")
	}
	delim := d.builder.Delimiter()
	if delim == "" {
		delim = textenc.LF
	}
	return d.builder.Encoding().Encode(delim)
}
