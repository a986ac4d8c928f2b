package tinyfat

import (
	"encoding/binary"
	"strings"
	"time"
)

// DirEntrySize is the size of one on-disk directory record.
const DirEntrySize = 32

// Directory entry attributes.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	// AttrLongName marks a VFAT long file name record.
	AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

const (
	markerUnused  = 0x00
	markerDeleted = 0xE5
)

// DirEntry is a short (8.3) directory entry.
type DirEntry struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// DecodeDirEntry decodes the first DirEntrySize bytes of record.
// It never fails, classification is done by the caller using
// IsUnused, IsDeleted and IsLongName. A record shorter than DirEntrySize
// results in the zero DirEntry, which reads as the end of the directory.
func DecodeDirEntry(record []byte) DirEntry {
	var e DirEntry
	if len(record) < DirEntrySize {
		return e
	}
	le := binary.LittleEndian

	copy(e.Name[:], record[0:11])
	e.Attribute = record[11]
	e.NTReserved = record[12]
	e.CreateTimeTenth = record[13]
	e.CreateTime = le.Uint16(record[14:])
	e.CreateDate = le.Uint16(record[16:])
	e.LastAccessDate = le.Uint16(record[18:])
	e.FirstClusterHI = le.Uint16(record[20:])
	e.WriteTime = le.Uint16(record[22:])
	e.WriteDate = le.Uint16(record[24:])
	e.FirstClusterLO = le.Uint16(record[26:])
	e.FileSize = le.Uint32(record[28:])
	return e
}

// IsUnused reports the end of a directory. No entries follow it.
func (e DirEntry) IsUnused() bool {
	return e.Name[0] == markerUnused
}

func (e DirEntry) IsDeleted() bool {
	return e.Name[0] == markerDeleted
}

// IsLongName reports a VFAT long file name record. These are skipped.
func (e DirEntry) IsLongName() bool {
	return e.Attribute == AttrLongName
}

// FirstCluster returns the start of the cluster chain of the entry.
func (e DirEntry) FirstCluster() uint32 {
	return uint32(e.FirstClusterHI)<<16 | uint32(e.FirstClusterLO)
}

// ShortName returns the base name and the extension with the trailing space padding removed.
func (e DirEntry) ShortName() (name, ext string) {
	return strings.TrimRight(string(e.Name[:8]), " "), strings.TrimRight(string(e.Name[8:]), " ")
}

// FullName returns the 8.3 name in the NAME.EXT notation. The dot is omitted without extension.
func (e DirEntry) FullName() string {
	name, ext := e.ShortName()
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func (e DirEntry) IsDir() bool {
	return e.Attribute&AttrDirectory == AttrDirectory
}

func (e DirEntry) IsVolumeLabel() bool {
	return e.Attribute&AttrVolumeID == AttrVolumeID
}

func (e DirEntry) IsHidden() bool {
	return e.Attribute&AttrHidden == AttrHidden
}

func (e DirEntry) IsReadOnly() bool {
	return e.Attribute&AttrReadOnly == AttrReadOnly
}

// ModTime returns the last write time or time.Time{} if the entry carries no valid date.
func (e DirEntry) ModTime() time.Time {
	return decodeTimestamp(e.WriteDate, e.WriteTime)
}

// entryKind is the result of classifying a raw directory record.
type entryKind int

const (
	entryValid entryKind = iota
	entryEnd
	entrySkip
)

// classify applies the directory scan rules in their priority order.
func (e DirEntry) classify() entryKind {
	switch {
	case e.IsUnused():
		return entryEnd
	case e.IsDeleted(), e.IsLongName():
		return entrySkip
	default:
		return entryValid
	}
}
