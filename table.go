package tinyfat

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/tinyfat/checkpoint"
)

const (
	// EOF is the lowest FAT value marking the end of a cluster chain.
	EOF = 0x0FFFFFF8

	// entryMask removes the reserved top 4 bits of a FAT32 entry.
	entryMask = 0x0FFFFFFF
	entrySize = 4

	badCluster = 0x0FFFFFF7
	// lastDataCluster is the highest value which is a valid chain link.
	lastDataCluster = 0x0FFFFFEF
	// firstDataCluster is the first cluster number addressing the data region.
	firstDataCluster = 2
)

// NextCluster reads the FAT entry of cluster from the FAT starting at fatLBA.
// The sector holding the entry is read into scratch which may be reused by the caller.
// The returned value is the raw entry with the reserved bits masked off.
// It is not classified, so it may be a next cluster, a reserved value or an end-of-chain marker.
func NextCluster(dev BlockDevice, fatLBA, cluster uint32, scratch *[SectorSize]byte) (uint32, error) {
	offset := cluster * entrySize
	sector := fatLBA + offset/SectorSize
	index := offset % SectorSize

	if err := dev.ReadSector(sector, scratch[:]); err != nil {
		return 0, checkpoint.Wrap(fmt.Errorf("read FAT sector %v: %w", sector, err), ErrIO)
	}

	return binary.LittleEndian.Uint32(scratch[index:index+entrySize]) & entryMask, nil
}

// fatEntry classifies a masked FAT32 entry.
type fatEntry uint32

// IsFree reports if the cluster is not allocated.
func (e fatEntry) IsFree() bool {
	return e == 0
}

// IsReserved reports values which can never point to a data cluster.
func (e fatEntry) IsReserved() bool {
	return e == 1
}

func (e fatEntry) IsNextCluster() bool {
	return e >= firstDataCluster && e <= lastDataCluster
}

func (e fatEntry) IsBad() bool {
	return e == badCluster
}

func (e fatEntry) IsEOF() bool {
	return e >= EOF
}

// EndsChain reports if a chain walk has to stop after reading this entry.
// Free and reserved entries are tolerated as the end of a short final link.
// An entry which neither ends the chain nor is a next cluster (e.g. a bad cluster)
// means the chain is corrupt.
func (e fatEntry) EndsChain() bool {
	return e < firstDataCluster || e >= EOF
}
