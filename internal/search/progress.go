package search

import (
	"time"

	"github.com/kk-code-lab/rlog/internal/debuglog"
)

const progressInterval = 100 * time.Millisecond

// progressThrottle forwards scan progress at most once per interval, plus
// the final update.
type progressThrottle struct {
	emit         func(scanned, total int64)
	interval     time.Duration
	lastEmit     time.Time
	lastReported int64
	clock        func() time.Time
}

func newProgressThrottle(interval time.Duration, emit func(scanned, total int64)) *progressThrottle {
	if interval <= 0 {
		interval = progressInterval
	}
	return &progressThrottle{
		emit:         emit,
		interval:     interval,
		lastReported: -1,
		clock:        time.Now,
	}
}

func (pt *progressThrottle) withClock(clock func() time.Time) *progressThrottle {
	pt.clock = clock
	return pt
}

func (pt *progressThrottle) update(scanned, total int64) {
	if pt.emit == nil || scanned <= pt.lastReported {
		return
	}
	now := pt.clock()
	if pt.lastReported < 0 || now.Sub(pt.lastEmit) >= pt.interval || scanned >= total {
		pt.emit(scanned, total)
		pt.lastEmit = now
		pt.lastReported = scanned
	}
}

func (pt *progressThrottle) flush(scanned, total int64) {
	if pt.emit == nil || scanned <= pt.lastReported {
		return
	}
	debuglog.Debugf("search progress flush scanned=%d total=%d", scanned, total)
	pt.emit(scanned, total)
	pt.lastEmit = pt.clock()
	pt.lastReported = scanned
}
