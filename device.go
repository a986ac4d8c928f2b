package tinyfat

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aligator/tinyfat/checkpoint"
	"github.com/spf13/afero"
)

// SectorSize is the only sector size supported by the driver.
const SectorSize = 512

// These errors are returned by BlockDevice implementations.
var (
	ErrDeviceIO    = errors.New("device i/o failure")
	ErrShortBuffer = errors.New("buffer smaller than one sector")
)

// BlockDevice provides sector-wise read access to a storage medium.
// Generated mock using mockgen:
//  mockgen -source=device.go -destination=device_mock.go -package tinyfat
type BlockDevice interface {
	// ReadSector fills buf[:SectorSize] with the sector at the logical block address lba.
	// It returns ErrShortBuffer if buf is too small and ErrDeviceIO if the sector
	// could not be read completely.
	ReadSector(lba uint32, buf []byte) error
}

// ReaderDevice is a BlockDevice backed by an io.ReaderAt,
// for example an *os.File, an afero.File or a *bytes.Reader holding an image.
type ReaderDevice struct {
	r io.ReaderAt
}

func NewReaderDevice(r io.ReaderAt) *ReaderDevice {
	return &ReaderDevice{r: r}
}

func (d *ReaderDevice) ReadSector(lba uint32, buf []byte) error {
	if len(buf) < SectorSize {
		return ErrShortBuffer
	}

	n, err := d.r.ReadAt(buf[:SectorSize], int64(lba)*SectorSize)
	if n == SectorSize {
		// io.ReaderAt may return io.EOF together with a full read at the end of the image.
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}

	return checkpoint.Wrap(fmt.Errorf("%w, lba: %v, read: %v", err, lba, n), ErrDeviceIO)
}

// ImageDevice is a ReaderDevice which owns the opened image file.
type ImageDevice struct {
	ReaderDevice
	file afero.File
}

// OpenImage opens the image file name from the given afero filesystem as BlockDevice.
// The image size has to be a multiple of SectorSize.
func OpenImage(fs afero.Fs, name string) (*ImageDevice, error) {
	file, err := fs.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, checkpoint.From(err)
	}

	if stat.IsDir() || stat.Size()%SectorSize != 0 {
		_ = file.Close()
		return nil, checkpoint.Wrap(fmt.Errorf("%v has size %v", name, stat.Size()), ErrMalformed)
	}

	return &ImageDevice{
		ReaderDevice: ReaderDevice{r: file},
		file:         file,
	}, nil
}

func (d *ImageDevice) Close() error {
	return d.file.Close()
}

// PartitionDevice exposes a range of sectors of another BlockDevice as its own device.
// It is used to mount a volume which lives inside a partitioned disk image.
type PartitionDevice struct {
	dev   BlockDevice
	start uint32
	count uint32
}

// NewPartitionDevice creates a device for the sectors [start, start+count) of dev.
// A count of 0 means the partition reaches until the end of dev.
func NewPartitionDevice(dev BlockDevice, start, count uint32) *PartitionDevice {
	return &PartitionDevice{
		dev:   dev,
		start: start,
		count: count,
	}
}

func (p *PartitionDevice) ReadSector(lba uint32, buf []byte) error {
	if p.count != 0 && lba >= p.count {
		return checkpoint.Wrap(fmt.Errorf("lba %v outside of partition with %v sectors", lba, p.count), ErrDeviceIO)
	}
	if lba > ^uint32(0)-p.start {
		return checkpoint.Wrap(fmt.Errorf("lba %v overflows partition start %v", lba, p.start), ErrDeviceIO)
	}

	return p.dev.ReadSector(p.start+lba, buf)
}
