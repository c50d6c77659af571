package search

import (
	"context"
	"errors"
	"sync"

	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/source"
)

// FindResult is delivered once per find that was not superseded.
type FindResult struct {
	Token int
	Match Match
	Found bool
	Err   error
}

// Searcher runs one find at a time in the background. Starting a new find
// cancels the previous one.
type Searcher struct {
	cancelMu sync.Mutex
	cancel   context.CancelFunc
	token    int
}

func NewSearcher() *Searcher {
	return &Searcher{}
}

// Find starts a search on a fresh stream from src. progress (optional) and
// callback are called from the search goroutine. The returned token
// identifies the result.
func (s *Searcher) Find(src source.Source, opts FindOptions, progress func(scanned, total int64), callback func(FindResult)) int {
	s.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	token := s.setCancel(cancel)

	go func(ctx context.Context, cancel context.CancelFunc, token int) {
		defer s.clearCancel(token)
		defer cancel()

		res := FindResult{Token: token}
		stream, err := src.Open()
		if err != nil {
			res.Err = err
			s.deliver(token, callback, res)
			return
		}
		defer stream.Close()

		if opts.FileEnd <= 0 {
			if opts.FileEnd, err = stream.Size(); err != nil {
				res.Err = err
				s.deliver(token, callback, res)
				return
			}
		}
		var throttle *progressThrottle
		if progress != nil {
			throttle = newProgressThrottle(progressInterval, func(scanned, total int64) {
				if s.isTokenCurrent(token) {
					progress(scanned, total)
				}
			})
			opts.Progress = throttle.update
		}

		res.Match, res.Found, res.Err = Find(ctx, stream, opts)
		if errors.Is(res.Err, context.Canceled) {
			debuglog.Debugf("search token=%d cancelled", token)
			return
		}
		if throttle != nil {
			throttle.flush(opts.FileEnd, opts.FileEnd)
		}
		s.deliver(token, callback, res)
	}(ctx, cancel, token)

	return token
}

func (s *Searcher) deliver(token int, callback func(FindResult), res FindResult) {
	if !s.isTokenCurrent(token) || callback == nil {
		return
	}
	debuglog.Debugf("search token=%d found=%v offset=%d err=%v", token, res.Found, res.Match.Offset, res.Err)
	callback(res)
}

// Cancel stops the running find, if any. Its callback will not be called.
func (s *Searcher) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.token++
	}
}

// Busy reports whether a find is running.
func (s *Searcher) Busy() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	return s.cancel != nil
}

func (s *Searcher) setCancel(cancel context.CancelFunc) int {
	s.cancelMu.Lock()
	s.token++
	token := s.token
	s.cancel = cancel
	s.cancelMu.Unlock()
	return token
}

func (s *Searcher) clearCancel(token int) {
	s.cancelMu.Lock()
	if s.token == token {
		s.cancel = nil
	}
	s.cancelMu.Unlock()
}

func (s *Searcher) isTokenCurrent(token int) bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	return s.token == token
}
