package scan

import "fmt"

// ByteRange is a half-open interval [Begin, End) of file offsets.
type ByteRange struct {
	Begin int64
	End   int64
}

// InvalidRange is returned where no range exists, e.g. the intersection of
// disjoint ranges.
var InvalidRange = ByteRange{Begin: -1, End: -1}

// Valid reports whether the range is well formed.
func (r ByteRange) Valid() bool {
	return r.Begin >= 0 && r.Begin <= r.End
}

func (r ByteRange) Len() int64 {
	if !r.Valid() {
		return 0
	}
	return r.End - r.Begin
}

func (r ByteRange) IsEmpty() bool {
	return r.Len() == 0
}

// Contains reports whether off lies inside the range.
func (r ByteRange) Contains(off int64) bool {
	return r.Valid() && off >= r.Begin && off < r.End
}

// ContainsRange reports whether other lies completely inside r.
func (r ByteRange) ContainsRange(other ByteRange) bool {
	if !r.Valid() || !other.Valid() {
		return false
	}
	return other.Begin >= r.Begin && other.End <= r.End
}

// Overlaps reports whether the ranges share at least one byte.
func (r ByteRange) Overlaps(other ByteRange) bool {
	if !r.Valid() || !other.Valid() {
		return false
	}
	return r.Begin < other.End && other.Begin < r.End
}

// Intersect returns the common part of both ranges, or InvalidRange when
// they are disjoint. Ranges that merely touch intersect in an empty range.
func (r ByteRange) Intersect(other ByteRange) ByteRange {
	if !r.Valid() || !other.Valid() {
		return InvalidRange
	}
	out := ByteRange{Begin: max(r.Begin, other.Begin), End: min(r.End, other.End)}
	if out.Begin > out.End {
		return InvalidRange
	}
	return out
}

// Encompass returns the smallest range covering both. An invalid operand is
// ignored.
func (r ByteRange) Encompass(other ByteRange) ByteRange {
	switch {
	case !r.Valid():
		return other
	case !other.Valid():
		return r
	}
	return ByteRange{Begin: min(r.Begin, other.Begin), End: max(r.End, other.End)}
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Begin, r.End)
}
