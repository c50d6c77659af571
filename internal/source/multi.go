package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Multi concatenates several files into one logical log, in order.
type Multi struct {
	paths []string
}

func NewMulti(paths ...string) *Multi {
	return &Multi{paths: append([]string(nil), paths...)}
}

// New returns a File for one path and a Multi for several.
func New(paths ...string) (Source, error) {
	switch len(paths) {
	case 0:
		return nil, errors.New("no log files given")
	case 1:
		return NewFile(paths[0]), nil
	default:
		return NewMulti(paths...), nil
	}
}

func (m *Multi) Name() string {
	return strings.Join(m.paths, " + ")
}

func (m *Multi) Paths() []string {
	return append([]string(nil), m.paths...)
}

func (m *Multi) Open() (Stream, error) {
	stream := &multiStream{}
	for _, path := range m.paths {
		file, err := openShared(path)
		if err != nil {
			_ = stream.Close()
			return nil, wrapOpenError(path, err)
		}
		stream.parts = append(stream.parts, part{file: file})
	}
	if _, err := stream.Size(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return stream, nil
}

func (m *Multi) PathAt(offset int64) string {
	if len(m.paths) == 0 {
		return ""
	}
	var begin int64
	for _, path := range m.paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if offset < begin+info.Size() {
			return path
		}
		begin += info.Size()
	}
	return m.paths[len(m.paths)-1]
}

func (m *Multi) Clear() error {
	var errs []error
	for _, path := range m.paths {
		if err := os.Truncate(path, 0); err != nil {
			errs = append(errs, wrapOpenError(path, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) NewInstance() Source {
	return NewMulti(m.paths...)
}

type part struct {
	file  *os.File
	begin int64
	size  int64
}

type multiStream struct {
	parts []part
	pos   int64
	total int64
}

// Size restats every part and recomputes where each one begins.
func (s *multiStream) Size() (int64, error) {
	var begin int64
	for i := range s.parts {
		info, err := s.parts[i].file.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", s.parts[i].file.Name(), err)
		}
		s.parts[i].begin = begin
		s.parts[i].size = info.Size()
		begin += info.Size()
	}
	s.total = begin
	return begin, nil
}

func (s *multiStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for i := range s.parts {
		pt := s.parts[i]
		if s.pos < pt.begin || s.pos >= pt.begin+pt.size {
			continue
		}
		avail := pt.begin + pt.size - s.pos
		if int64(len(p)) > avail {
			p = p[:avail]
		}
		n, err := pt.file.ReadAt(p, s.pos-pt.begin)
		s.pos += int64(n)
		if errors.Is(err, io.EOF) && n > 0 {
			err = nil
		}
		return n, err
	}
	return 0, io.EOF
}

func (s *multiStream) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = s.total + offset
	default:
		return s.pos, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return s.pos, fmt.Errorf("seek: negative position %d", next)
	}
	s.pos = next
	return next, nil
}

func (s *multiStream) Close() error {
	var errs []error
	for _, pt := range s.parts {
		if err := pt.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.parts = nil
	return errors.Join(errs...)
}
