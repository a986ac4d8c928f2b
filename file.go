package tinyfat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/tinyfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)

// fatFileFs provides all methods needed from a fat filesystem for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package tinyfat
type fatFileFs interface {
	readFileAt(entry DirEntry, offset int64, readSize int64) ([]byte, error)
	readDir(entry DirEntry) ([]DirEntry, error)
}

var _ afero.File = (*File)(nil)

// File is an opened file or directory of a mounted Fs. It is read-only.
type File struct {
	fs   fatFileFs
	path string

	entry  DirEntry
	offset int64
}

func (f *File) Close() error {
	f.fs = nil
	f.path = ""
	f.entry = DirEntry{}
	f.offset = 0

	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if f.entry.IsDir() {
		return 0, checkpoint.Wrap(fmt.Errorf("%v: %w", f.path, ErrIsDir), ErrReadFile)
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading a file if the size has been already reached, makes no sense.
	if int64(f.entry.FileSize) <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry, f.offset, int64(len(p)))
	n = copy(p, data)

	// Advance even if an error occurred, errors from reading are used even if seek also errors.
	_, seekErr := f.Seek(int64(n), io.SeekCurrent)

	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}

	if seekErr != nil {
		return n, checkpoint.Wrap(seekErr, ErrReadFile)
	}

	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if f.entry.IsDir() {
		return 0, checkpoint.Wrap(fmt.Errorf("%v: %w", f.path, ErrIsDir), ErrReadFile)
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading over the end makes no sense.
	if int64(f.entry.FileSize) <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry, off, int64(len(p)))
	n = copy(p, data)

	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}

	// ReaderAt has to return an error if less than len(p) bytes were read.
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	size := int64(f.entry.FileSize)

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = size + offset
	default:
		return 0, checkpoint.Wrap(fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence), ErrSeekFile)
	}

	if offset < 0 || offset > size {
		return 0, checkpoint.Wrap(fmt.Errorf("%w, offset: %v, whence: %v", afero.ErrOutOfRange, offset, whence), ErrSeekFile)
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: ErrReadOnly}
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: ErrReadOnly}
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

// Name returns the name as passed to Open.
func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory.
// For count > 0 it returns at most count entries and io.EOF if none are left.
// For count <= 0 it returns all remaining entries.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.entry.IsDir() {
		return nil, checkpoint.Wrap(fmt.Errorf("%v: %w", f.path, ErrNotDir), ErrReadDir)
	}

	content, err := f.fs.readDir(f.entry)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	// The offset is used as position in the directory listing.
	start := int(f.offset)
	if start > len(content) {
		start = len(content)
	}
	content = content[start:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if count < len(content) {
			content = content[:count]
		}
	}
	f.offset += int64(len(content))

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}

	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, err
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.entry.FileInfo(), nil
}

func (f *File) Sync() error {
	return nil
}

func (f *File) Truncate(size int64) error {
	return &os.PathError{Op: "truncate", Path: f.path, Err: ErrReadOnly}
}
