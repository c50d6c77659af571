package linecache

import (
	"io"

	"github.com/kk-code-lab/rlog/internal/logline"
	"github.com/kk-code-lab/rlog/internal/scan"
)

const DefaultCapacity = 1024

// DecodeFunc builds a Line from the raw bytes of r.
type DecodeFunc func(start int64, raw []byte) logline.Line

type slot struct {
	r    scan.ByteRange
	line logline.Line
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache keeps decoded lines in a fixed array of slots addressed by
// line start modulo capacity. A colliding line simply overwrites the slot.
type Cache struct {
	slots []slot
	buf   []byte
	stats Stats
}

func New(capacity int) *Cache {
	c := &Cache{}
	c.Resize(capacity)
	return c
}

func (c *Cache) Capacity() int {
	return len(c.slots)
}

// Get returns the line for r, reading and decoding it on a miss.
func (c *Cache) Get(rs io.ReadSeeker, r scan.ByteRange, decode DecodeFunc) (logline.Line, error) {
	s := &c.slots[c.index(r.Begin)]
	if s.r == r {
		c.stats.Hits++
		return s.line, nil
	}
	c.stats.Misses++

	n := int(r.Len())
	if cap(c.buf) < n {
		c.buf = make([]byte, n)
	}
	raw := c.buf[:n]
	if n > 0 {
		if err := scan.ReadFull(rs, r.Begin, raw); err != nil {
			return logline.Line{}, err
		}
	}
	line := decode(r.Begin, raw)
	s.r = r
	s.line = line
	return line, nil
}

// InvalidateAll empties every slot.
func (c *Cache) InvalidateAll() {
	for i := range c.slots {
		c.slots[i] = slot{r: scan.InvalidRange}
	}
}

// InvalidateRange empties slots holding a line that starts inside r.
func (c *Cache) InvalidateRange(r scan.ByteRange) {
	if !r.Valid() {
		return
	}
	for i := range c.slots {
		if c.slots[i].r.Valid() && r.Contains(c.slots[i].r.Begin) {
			c.slots[i] = slot{r: scan.InvalidRange}
		}
	}
}

// Resize reallocates the slots; all entries are dropped.
func (c *Cache) Resize(capacity int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity == len(c.slots) {
		return
	}
	c.slots = make([]slot, capacity)
	c.InvalidateAll()
}

func (c *Cache) Stats() Stats {
	return c.stats
}

func (c *Cache) index(start int64) int {
	i := start % int64(len(c.slots))
	if i < 0 {
		i += int64(len(c.slots))
	}
	return int(i)
}
