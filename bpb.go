package tinyfat

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/aligator/tinyfat/checkpoint"
)

const (
	bpbOffset      = 11
	fat32ExtOffset = 36

	signatureOffset = 510
)

// BPB is the BIOS Parameter Block common to all FAT variants.
// It starts at byte 11 of the boot sector.
type BPB struct {
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	NumFATs             uint8
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               uint8
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
}

// FAT32Ext contains the FAT32 specific part of the boot sector starting at byte 36.
type FAT32Ext struct {
	FATSize32      uint32
	ExtFlags       uint16
	FSVersion      uint16
	RootCluster    uint32
	FSInfo         uint16
	BkBootSector   uint16
	Reserved       [12]byte
	DriveNumber    uint8
	Reserved1      uint8
	BootSignature  uint8
	VolumeID       uint32
	VolumeLabel    [11]byte
	FileSystemType [8]byte
}

// BootSector is the parsed first sector of a FAT32 volume.
type BootSector struct {
	BPB
	FAT32Ext
}

// ParseBootSector decodes and validates the boot sector contained in sector.
// It fails with ErrMalformed if sector is shorter than SectorSize, with ErrBadSignature
// if the sector does not end with 0x55 0xAA and with ErrUnsupported for any sector size
// other than 512 bytes.
func ParseBootSector(sector []byte) (BootSector, error) {
	if len(sector) < SectorSize {
		return BootSector{}, checkpoint.Wrap(fmt.Errorf("got %v bytes", len(sector)), ErrMalformed)
	}

	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return BootSector{}, checkpoint.Wrap(fmt.Errorf("found 0x%02X 0x%02X", sector[signatureOffset], sector[signatureOffset+1]), ErrBadSignature)
	}

	var bs BootSector
	bs.BPB.decode(sector[bpbOffset:fat32ExtOffset])
	bs.FAT32Ext.decode(sector[fat32ExtOffset:90])

	if bs.BytesPerSector != SectorSize {
		return BootSector{}, checkpoint.Wrap(fmt.Errorf("%v bytes per sector", bs.BytesPerSector), ErrUnsupported)
	}

	return bs, nil
}

func (b *BPB) decode(d []byte) {
	le := binary.LittleEndian
	b.BytesPerSector = le.Uint16(d[0:])
	b.SectorsPerCluster = d[2]
	b.ReservedSectorCount = le.Uint16(d[3:])
	b.NumFATs = d[5]
	b.RootEntryCount = le.Uint16(d[6:])
	b.TotalSectors16 = le.Uint16(d[8:])
	b.Media = d[10]
	b.FATSize16 = le.Uint16(d[11:])
	b.SectorsPerTrack = le.Uint16(d[13:])
	b.NumberOfHeads = le.Uint16(d[15:])
	b.HiddenSectors = le.Uint32(d[17:])
	b.TotalSectors32 = le.Uint32(d[21:])
}

func (e *FAT32Ext) decode(d []byte) {
	le := binary.LittleEndian
	e.FATSize32 = le.Uint32(d[0:])
	e.ExtFlags = le.Uint16(d[4:])
	e.FSVersion = le.Uint16(d[6:])
	e.RootCluster = le.Uint32(d[8:])
	e.FSInfo = le.Uint16(d[12:])
	e.BkBootSector = le.Uint16(d[14:])
	copy(e.Reserved[:], d[16:28])
	e.DriveNumber = d[28]
	e.Reserved1 = d[29]
	e.BootSignature = d[30]
	e.VolumeID = le.Uint32(d[31:])
	copy(e.VolumeLabel[:], d[35:46])
	copy(e.FileSystemType[:], d[46:54])
}

// SectorsPerFAT32 returns the count of sectors occupied by one FAT.
func (b BootSector) SectorsPerFAT32() uint32 {
	return b.FATSize32
}

// TotalSectors returns the sector count of the volume. FAT32 volumes normally
// only fill the 32 bit field but some formatters still use the 16 bit one.
func (b BootSector) TotalSectors() uint32 {
	if b.TotalSectors16 != 0 {
		return uint32(b.TotalSectors16)
	}
	return b.TotalSectors32
}

func (b BootSector) BytesPerCluster() uint32 {
	return uint32(b.SectorsPerCluster) * uint32(b.BytesPerSector)
}

// Label returns the volume label without the space padding.
func (b BootSector) Label() string {
	return strings.TrimRight(string(b.VolumeLabel[:]), " ")
}

// FSTypeName returns the informational filesystem type string, normally "FAT32".
func (b BootSector) FSTypeName() string {
	return strings.TrimRight(string(b.FileSystemType[:]), " ")
}
