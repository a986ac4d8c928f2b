package tinyfat

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/aligator/tinyfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors are returned by the afero.Fs layer.
var (
	ErrNotExist = os.ErrNotExist
	ErrNotDir   = syscall.ENOTDIR
	ErrIsDir    = syscall.EISDIR
	ErrReadOnly = syscall.EROFS
)

var _ afero.Fs = (*Fs)(nil)

// NewIOFS returns the mounted volume as io/fs.FS.
func NewIOFS(fs *Fs) afero.IOFS {
	return afero.NewIOFS(fs)
}

func (fs *Fs) Name() string {
	return "tinyfat"
}

func (fs *Fs) Open(name string) (afero.File, error) {
	fs.lock.Lock()
	entry, err := fs.Lookup(name)
	fs.lock.Unlock()

	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}

	return &File{
		fs:    fs,
		path:  name,
		entry: entry,
	}, nil
}

// OpenFile opens name read-only. Any flag which would modify the filesystem
// results in ErrReadOnly.
func (fs *Fs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrReadOnly}
	}
	return fs.Open(name)
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	fs.lock.Lock()
	entry, err := fs.Lookup(name)
	fs.lock.Unlock()

	if err != nil {
		return nil, &os.PathError{Op: "stat", Path: name, Err: err}
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, &os.PathError{Op: "create", Path: name, Err: ErrReadOnly}
}

func (fs *Fs) Mkdir(name string, _ os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: ErrReadOnly}
}

func (fs *Fs) MkdirAll(path string, _ os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: path, Err: ErrReadOnly}
}

func (fs *Fs) Remove(name string) error {
	return &os.PathError{Op: "remove", Path: name, Err: ErrReadOnly}
}

func (fs *Fs) RemoveAll(path string) error {
	return &os.PathError{Op: "remove", Path: path, Err: ErrReadOnly}
}

func (fs *Fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: ErrReadOnly}
}

func (fs *Fs) Chmod(name string, _ os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: name, Err: ErrReadOnly}
}

func (fs *Fs) Chown(name string, _, _ int) error {
	return &os.PathError{Op: "chown", Path: name, Err: ErrReadOnly}
}

func (fs *Fs) Chtimes(name string, _ time.Time, _ time.Time) error {
	return &os.PathError{Op: "chtimes", Path: name, Err: ErrReadOnly}
}

// readFileAt reads up to readSize bytes of the file at offset.
// If the file ends before, the available bytes are returned together with io.EOF.
func (fs *Fs) readFileAt(entry DirEntry, offset int64, readSize int64) ([]byte, error) {
	fileSize := int64(entry.FileSize)
	if offset >= fileSize {
		return nil, io.EOF
	}

	size := readSize
	if remaining := fileSize - offset; remaining < size {
		size = remaining
	}

	data := make([]byte, size)

	fs.lock.Lock()
	n, err := fs.ReadFileAt(entry, offset, data)
	fs.lock.Unlock()

	if err != nil {
		return data[:n], checkpoint.From(err)
	}
	if int64(n) < size {
		return data[:n], checkpoint.Wrap(fmt.Errorf("chain ended after %v of %v bytes", n, size), ErrCorruptChain)
	}
	if size < readSize {
		return data, io.EOF
	}
	return data, nil
}

// readDir returns the entries of a directory without the "." and ".." entries and the volume label.
func (fs *Fs) readDir(entry DirEntry) ([]DirEntry, error) {
	fs.lock.Lock()
	entries, err := fs.ListDir(fs.dirCluster(entry))
	fs.lock.Unlock()

	if err != nil {
		return nil, checkpoint.From(err)
	}

	result := entries[:0]
	for _, e := range entries {
		if e.IsVolumeLabel() {
			continue
		}
		if name := e.FullName(); name == "." || name == ".." {
			continue
		}
		result = append(result, e)
	}

	return result, nil
}
