package scan

import "bytes"

// FindDelimiter looks for delim in buf, only at offsets that are a multiple
// of step.
//
// Forward it searches buf[start:] and returns the index just past the first
// match, or len(buf) when there is none. Backward, start is the exclusive
// end of the searched region and the result is the index where the nearest
// delimiter ending at or before start begins, or -1.
func FindDelimiter(buf []byte, start int, delim []byte, step int, backward bool) int {
	if backward {
		return lastIndexDelimiter(buf, start, delim, step)
	}
	i := indexDelimiter(buf, start, delim, step)
	if i < 0 {
		return len(buf)
	}
	return i + len(delim)
}

// indexDelimiter returns the index of the first aligned match at or after
// start, or -1.
func indexDelimiter(buf []byte, start int, delim []byte, step int) int {
	if len(delim) == 0 || start < 0 {
		return -1
	}
	if step > 1 && start%step != 0 {
		start += step - start%step
	}
	for start+len(delim) <= len(buf) {
		j := bytes.Index(buf[start:], delim)
		if j < 0 {
			return -1
		}
		at := start + j
		if step <= 1 || at%step == 0 {
			return at
		}
		start = at + 1
		if start%step != 0 {
			start += step - start%step
		}
	}
	return -1
}

// lastIndexDelimiter returns the index of the last aligned match lying
// entirely within buf[:end], or -1.
func lastIndexDelimiter(buf []byte, end int, delim []byte, step int) int {
	if len(delim) == 0 {
		return -1
	}
	end = min(end, len(buf))
	for end >= len(delim) {
		j := bytes.LastIndex(buf[:end], delim)
		if j < 0 {
			return -1
		}
		if step <= 1 || j%step == 0 {
			return j
		}
		end = j + len(delim) - 1
	}
	return -1
}

// IndexDelimiter returns the index of the first match of delim at or after
// start whose offset is a multiple of step, or -1.
func IndexDelimiter(buf []byte, start int, delim []byte, step int) int {
	return indexDelimiter(buf, start, delim, step)
}
