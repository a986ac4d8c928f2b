package tinyfat

import (
	"os"
	"time"
)

// FileInfo returns the entry as os.FileInfo. Sys() returns the DirEntry.
func (e DirEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry DirEntry
}

func (i entryFileInfo) Name() string {
	return i.entry.FullName()
}

func (i entryFileInfo) Size() int64 {
	if i.IsDir() {
		return 0
	}
	return int64(i.entry.FileSize)
}

func (i entryFileInfo) Mode() os.FileMode {
	var mode os.FileMode = 0444
	if i.IsDir() {
		mode |= os.ModeDir | 0111
	}
	return mode
}

func (i entryFileInfo) ModTime() time.Time {
	return i.entry.ModTime()
}

func (i entryFileInfo) IsDir() bool {
	return i.entry.IsDir()
}

func (i entryFileInfo) Sys() interface{} {
	return i.entry
}
