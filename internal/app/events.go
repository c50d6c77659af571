package app

import (
	"github.com/gdamore/tcell/v2"
	"github.com/kk-code-lab/rlog/internal/lineindex"
	"github.com/kk-code-lab/rlog/internal/search"
)

// indexEvent carries a finished background build to the loop, which is the
// only goroutine allowed to merge it.
type indexEvent struct {
	tcell.EventTime
	res lineindex.Result
}

func newIndexEvent(res lineindex.Result) *indexEvent {
	ev := &indexEvent{res: res}
	ev.SetEventNow()
	return ev
}

type searchEvent struct {
	tcell.EventTime
	res search.FindResult
}

func newSearchEvent(res search.FindResult) *searchEvent {
	ev := &searchEvent{res: res}
	ev.SetEventNow()
	return ev
}

type progressEvent struct {
	tcell.EventTime
	scanned int64
	total   int64
}

func newProgressEvent(scanned, total int64) *progressEvent {
	ev := &progressEvent{scanned: scanned, total: total}
	ev.SetEventNow()
	return ev
}

type exportEvent struct {
	tcell.EventTime
	path  string
	stats search.ExportStats
	err   error
}

func newExportEvent(path string, stats search.ExportStats, err error) *exportEvent {
	ev := &exportEvent{path: path, stats: stats, err: err}
	ev.SetEventNow()
	return ev
}
