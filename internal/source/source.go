package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrFileNotFound is returned by Open when a log file does not exist (yet).
var ErrFileNotFound = errors.New("log file not found")

// Stream is an open view of a source. Size is re-read on every call so a
// growing file reports its current length.
type Stream interface {
	io.ReadSeeker
	io.Closer
	Size() (int64, error)
}

// Source opens independent streams over one logical log.
type Source interface {
	Name() string
	Open() (Stream, error)
	// PathAt returns the file that holds offset.
	PathAt(offset int64) string
	// Clear truncates the underlying file(s).
	Clear() error
	NewInstance() Source
}

// File is a Source backed by a single path.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string {
	return f.path
}

func (f *File) Open() (Stream, error) {
	file, err := openShared(f.path)
	if err != nil {
		return nil, wrapOpenError(f.path, err)
	}
	return &fileStream{File: file}, nil
}

func (f *File) PathAt(int64) string {
	return f.path
}

func (f *File) Clear() error {
	if err := os.Truncate(f.path, 0); err != nil {
		return wrapOpenError(f.path, err)
	}
	return nil
}

func (f *File) NewInstance() Source {
	return NewFile(f.path)
}

type fileStream struct {
	*os.File
}

func (s *fileStream) Size() (int64, error) {
	info, err := s.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.Name(), err)
	}
	return info.Size(), nil
}

func wrapOpenError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrFileNotFound, filepath.Clean(path), err)
	}
	return fmt.Errorf("open %s: %w", path, err)
}
