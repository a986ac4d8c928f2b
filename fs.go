package tinyfat

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"sync"

	"github.com/aligator/tinyfat/checkpoint"
)

// These errors may occur while mounting or reading the filesystem.
var (
	ErrBadSignature = errors.New("no valid boot sector signature")
	ErrUnsupported  = errors.New("unsupported filesystem geometry")
	ErrMalformed    = errors.New("malformed input")
	ErrIO           = errors.New("could not read from the device")
	ErrCorruptChain = errors.New("corrupt cluster chain")
)

// MaxClusterSize is the biggest cluster size in bytes ReadFile supports.
const MaxClusterSize = 32 * 1024

// Option configures a mounted Fs.
type Option func(fs *Fs)

// WithMaxChainLength limits every cluster chain walk to n clusters.
// Longer chains fail with ErrCorruptChain. By default the limit is the count of
// entries the FAT can hold, which no valid chain can exceed.
func WithMaxChainLength(n uint32) Option {
	return func(fs *Fs) {
		fs.maxChainLength = n
	}
}

// Fs is a mounted, read-only FAT32 volume.
//
// The core methods (ReadCluster, ReadDirChain, ReadFile, ...) use caller supplied buffers
// and are not safe for concurrent use. The afero.Fs methods serialize access on their own.
type Fs struct {
	// lock is only used by the afero.Fs layer.
	lock sync.Mutex

	dev        BlockDevice
	bootSector BootSector

	fatLBA       uint32
	firstDataLBA uint32

	maxChainLength uint32

	fatSector     [SectorSize]byte
	clusterBuffer [MaxClusterSize]byte
}

// New mounts the FAT32 volume contained in the given image reader.
func New(image io.ReaderAt, opts ...Option) (*Fs, error) {
	return Mount(NewReaderDevice(image), opts...)
}

// Mount reads and validates the boot sector of dev and returns the mounted filesystem.
// The device is owned by the returned Fs from now on.
func Mount(dev BlockDevice, opts ...Option) (*Fs, error) {
	var sector [SectorSize]byte
	if err := dev.ReadSector(0, sector[:]); err != nil {
		return nil, checkpoint.Wrap(fmt.Errorf("read boot sector: %w", err), ErrIO)
	}

	bootSector, err := ParseBootSector(sector[:])
	if err != nil {
		return nil, checkpoint.From(err)
	}

	fatRegion := uint64(bootSector.NumFATs) * uint64(bootSector.SectorsPerFAT32())
	if uint64(bootSector.ReservedSectorCount)+fatRegion > math.MaxUint32 {
		return nil, checkpoint.Wrap(fmt.Errorf("%v FATs of %v sectors do not fit into 32 bit sector numbers", bootSector.NumFATs, bootSector.SectorsPerFAT32()), ErrUnsupported)
	}

	fs := &Fs{
		dev:        dev,
		bootSector: bootSector,
	}

	// The FAT starts directly after the reserved sectors, the data region after all FATs.
	fs.fatLBA = uint32(bootSector.ReservedSectorCount)
	fs.firstDataLBA = fs.fatLBA + uint32(bootSector.NumFATs)*bootSector.SectorsPerFAT32()

	fs.maxChainLength = defaultMaxChainLength(bootSector)
	for _, opt := range opts {
		opt(fs)
	}

	return fs, nil
}

func defaultMaxChainLength(bs BootSector) uint32 {
	entries := uint64(bs.SectorsPerFAT32()) * (SectorSize / entrySize)
	if entries > lastDataCluster {
		entries = lastDataCluster
	}
	if entries < 1 {
		return 1
	}
	return uint32(entries)
}

func (fs *Fs) BootSector() BootSector {
	return fs.bootSector
}

// FATLBA returns the first sector of the first FAT.
func (fs *Fs) FATLBA() uint32 {
	return fs.fatLBA
}

// FirstDataLBA returns the sector where cluster 2 starts.
func (fs *Fs) FirstDataLBA() uint32 {
	return fs.firstDataLBA
}

// Label returns the volume label stored in the boot sector.
func (fs *Fs) Label() string {
	return fs.bootSector.Label()
}

// ClusterSize returns the size of one cluster in bytes.
func (fs *Fs) ClusterSize() int {
	return int(fs.bootSector.BytesPerCluster())
}

// FirstSectorOfCluster maps a data cluster to its first sector.
// It is only meaningful for cluster >= 2.
func (fs *Fs) FirstSectorOfCluster(cluster uint32) uint32 {
	return (cluster-firstDataCluster)*uint32(fs.bootSector.SectorsPerCluster) + fs.firstDataLBA
}

// NextCluster returns the masked FAT entry of cluster.
func (fs *Fs) NextCluster(cluster uint32) (uint32, error) {
	return NextCluster(fs.dev, fs.fatLBA, cluster, &fs.fatSector)
}

// ReadCluster reads all sectors of cluster into buf which has to hold at least ClusterSize bytes.
// If a sector read fails, buf may be partially written.
func (fs *Fs) ReadCluster(cluster uint32, buf []byte) error {
	if len(buf) < fs.ClusterSize() {
		return checkpoint.Wrap(fmt.Errorf("buffer of %v bytes for a cluster of %v bytes", len(buf), fs.ClusterSize()), ErrMalformed)
	}

	first := fs.FirstSectorOfCluster(cluster)
	for i := uint32(0); i < uint32(fs.bootSector.SectorsPerCluster); i++ {
		offset := i * SectorSize
		if err := fs.dev.ReadSector(first+i, buf[offset:offset+SectorSize]); err != nil {
			return checkpoint.Wrap(fmt.Errorf("read sector %v of cluster %v: %w", first+i, cluster, err), ErrIO)
		}
	}

	return nil
}

// ReadDirOnce reads the directory records of a single cluster using buf and stores the
// short entries into out. Deleted and long name records are skipped, an unused record
// ends the scan. It returns the count of entries stored.
func (fs *Fs) ReadDirOnce(cluster uint32, buf []byte, out []DirEntry) (int, error) {
	n, _, err := fs.readDirOnce(cluster, buf, out)
	return n, err
}

// readDirOnce additionally reports if the end marker of the directory was reached.
func (fs *Fs) readDirOnce(cluster uint32, buf []byte, out []DirEntry) (int, bool, error) {
	if err := fs.ReadCluster(cluster, buf); err != nil {
		return 0, false, checkpoint.From(err)
	}

	// Only the bytes of this cluster are scanned even if buf is bigger.
	size := fs.ClusterSize()
	count := 0
	for offset := 0; count < len(out) && offset+DirEntrySize <= size; offset += DirEntrySize {
		entry := DecodeDirEntry(buf[offset : offset+DirEntrySize])
		switch entry.classify() {
		case entryEnd:
			return count, true, nil
		case entrySkip:
			continue
		}

		out[count] = entry
		count++
	}

	return count, false, nil
}

// ReadDirChain reads the directory starting at start over its whole cluster chain.
// It stops when out is full, the directory end marker is found or the chain ends.
// Clusters following the one holding the end marker are never read.
// buf is used to read each cluster and has to hold at least ClusterSize bytes.
func (fs *Fs) ReadDirChain(start uint32, buf []byte, out []DirEntry) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	count := 0
	err := fs.walkChain(start, func(cluster uint32) (bool, error) {
		n, end, err := fs.readDirOnce(cluster, buf, out[count:])
		count += n
		return err == nil && !end && count < len(out), err
	})

	return count, err
}

// ReadRootDir reads the root directory, see ReadDirChain.
func (fs *Fs) ReadRootDir(buf []byte, out []DirEntry) (int, error) {
	return fs.ReadDirChain(fs.bootSector.RootCluster, buf, out)
}

// ReadFile copies the content of the file described by entry into buf.
// It returns the count of bytes copied, which is less than entry.FileSize if buf is smaller
// or the cluster chain ends early.
func (fs *Fs) ReadFile(entry DirEntry, buf []byte) (int, error) {
	return fs.ReadFileAt(entry, 0, buf)
}

// ReadFileAt works like ReadFile but starts at the byte offset off of the file.
// The clusters before off are skipped using the FAT only.
func (fs *Fs) ReadFileAt(entry DirEntry, off int64, buf []byte) (int, error) {
	size := int64(entry.FileSize)
	if off < 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("negative offset %v", off), ErrMalformed)
	}
	if off >= size || len(buf) == 0 {
		return 0, nil
	}

	clusterSize := int64(fs.ClusterSize())
	if clusterSize == 0 || clusterSize > MaxClusterSize {
		return 0, checkpoint.Wrap(fmt.Errorf("cluster size of %v bytes", clusterSize), ErrUnsupported)
	}

	want := size - off
	if int64(len(buf)) < want {
		want = int64(len(buf))
	}
	dst := buf[:want]

	scratch := fs.clusterBuffer[:clusterSize]
	skip := off / clusterSize
	start := off % clusterSize

	written := 0
	index := int64(0)
	err := fs.walkChain(entry.FirstCluster(), func(cluster uint32) (bool, error) {
		index++
		if index <= skip {
			return true, nil
		}

		if err := fs.ReadCluster(cluster, scratch); err != nil {
			return false, err
		}

		written += copy(dst[written:], scratch[start:])
		start = 0
		return written < len(dst), nil
	})

	return written, err
}

// walkChain calls visit for each cluster of the chain beginning at start until visit
// returns false, the chain ends or more than maxChainLength clusters were visited.
func (fs *Fs) walkChain(start uint32, visit func(cluster uint32) (bool, error)) error {
	if !fatEntry(start).IsNextCluster() {
		return checkpoint.Wrap(fmt.Errorf("chain starts at cluster %v", start), ErrCorruptChain)
	}

	cluster := start
	for steps := uint32(0); ; steps++ {
		if steps >= fs.maxChainLength {
			return checkpoint.Wrap(fmt.Errorf("chain at %v is longer than %v clusters", start, fs.maxChainLength), ErrCorruptChain)
		}

		more, err := visit(cluster)
		if err != nil {
			return checkpoint.From(err)
		}
		if !more {
			return nil
		}

		next, err := fs.NextCluster(cluster)
		if err != nil {
			return checkpoint.From(err)
		}

		entry := fatEntry(next)
		if entry.EndsChain() {
			return nil
		}
		if !entry.IsNextCluster() {
			return checkpoint.Wrap(fmt.Errorf("cluster %v links to 0x%08X", cluster, next), ErrCorruptChain)
		}
		cluster = next
	}
}

// ListDir returns all short entries of the directory starting at cluster.
// Unlike ReadDirChain it allocates the buffers it needs.
func (fs *Fs) ListDir(cluster uint32) ([]DirEntry, error) {
	buf := make([]byte, fs.ClusterSize())
	page := make([]DirEntry, len(buf)/DirEntrySize)

	var entries []DirEntry
	err := fs.walkChain(cluster, func(cluster uint32) (bool, error) {
		n, end, err := fs.readDirOnce(cluster, buf, page)
		entries = append(entries, page[:n]...)
		return err == nil && !end, err
	})

	return entries, err
}

// RootEntry returns a synthetic directory entry describing the root directory.
func (fs *Fs) RootEntry() DirEntry {
	root := DirEntry{
		Attribute:      AttrDirectory,
		FirstClusterHI: uint16(fs.bootSector.RootCluster >> 16),
		FirstClusterLO: uint16(fs.bootSector.RootCluster),
	}
	copy(root.Name[:], "/          ")
	return root
}

// Lookup resolves a slash separated path of short names, compared case-insensitive.
// The empty path and "/" resolve to RootEntry.
func (fs *Fs) Lookup(name string) (DirEntry, error) {
	current := fs.RootEntry()

	cleaned := path.Clean("/" + name)
	if cleaned == "/" {
		return current, nil
	}

	for _, part := range strings.Split(cleaned[1:], "/") {
		if !current.IsDir() {
			return DirEntry{}, checkpoint.Wrap(fmt.Errorf("%v is no directory", current.FullName()), ErrNotDir)
		}

		entries, err := fs.ListDir(fs.dirCluster(current))
		if err != nil {
			return DirEntry{}, checkpoint.From(err)
		}

		found := false
		for _, entry := range entries {
			if entry.IsVolumeLabel() || !strings.EqualFold(entry.FullName(), part) {
				continue
			}
			current = entry
			found = true
			break
		}

		if !found {
			return DirEntry{}, checkpoint.Wrap(fmt.Errorf("%v not found in %v", part, cleaned), ErrNotExist)
		}
	}

	return current, nil
}

// dirCluster returns the first cluster of a directory entry.
// ".." entries pointing to the root directory contain cluster 0.
func (fs *Fs) dirCluster(entry DirEntry) uint32 {
	if cluster := entry.FirstCluster(); cluster != 0 {
		return cluster
	}
	return fs.bootSector.RootCluster
}
