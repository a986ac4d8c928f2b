// Package fattest builds small FAT32 images in memory for tests.
// It writes the on-disk structures byte by byte so that it does not depend on the
// decoder it is used to test.
package fattest

import (
	"bytes"
	"encoding/binary"

	"github.com/spf13/afero"
)

const sectorSize = 512

// EOF is a FAT value ending a cluster chain.
const EOF = 0x0FFFFFF8

// Geometry describes the layout of an image.
type Geometry struct {
	Sectors           int
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize           uint32
	RootCluster       uint32
	Label             string
}

// DefaultGeometry is the smallest useful layout: 1 reserved sector, one FAT of one
// sector at LBA 1, cluster 2 at LBA 2 and one sector per cluster.
func DefaultGeometry(sectors int) Geometry {
	return Geometry{
		Sectors:           sectors,
		BytesPerSector:    sectorSize,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumFATs:           1,
		FATSize:           1,
		RootCluster:       2,
		Label:             "TINYFAT",
	}
}

// Image is a raw FAT32 volume.
type Image struct {
	Geometry
	Data []byte
}

// New creates an image with the given geometry and a valid boot sector.
func New(g Geometry) *Image {
	img := &Image{
		Geometry: g,
		Data:     make([]byte, g.Sectors*sectorSize),
	}

	s := img.Sector(0)
	s[0], s[1], s[2] = 0xEB, 0x58, 0x90
	copy(s[3:11], "TINYFAT ")
	binary.LittleEndian.PutUint16(s[11:], g.BytesPerSector)
	s[13] = g.SectorsPerCluster
	binary.LittleEndian.PutUint16(s[14:], g.ReservedSectors)
	s[16] = g.NumFATs
	s[21] = 0xF8
	binary.LittleEndian.PutUint32(s[32:], uint32(g.Sectors))
	binary.LittleEndian.PutUint32(s[36:], g.FATSize)
	binary.LittleEndian.PutUint32(s[44:], g.RootCluster)
	binary.LittleEndian.PutUint16(s[48:], 1)
	s[66] = 0x29
	binary.LittleEndian.PutUint32(s[67:], 0x1234ABCD)
	copy(s[71:82], pad(g.Label, 11))
	copy(s[82:90], "FAT32   ")
	s[510], s[511] = 0x55, 0xAA

	// Media descriptor and end of chain for the reserved entries 0 and 1.
	img.SetFAT(0, 0x0FFFFFF8)
	img.SetFAT(1, 0x0FFFFFFF)
	return img
}

// Sector returns the bytes of the sector at lba.
func (img *Image) Sector(lba uint32) []byte {
	start := int(lba) * sectorSize
	return img.Data[start : start+sectorSize]
}

// FATLBA is the first sector of the first FAT.
func (img *Image) FATLBA() uint32 {
	return uint32(img.ReservedSectors)
}

// FirstDataLBA is the first sector of cluster 2.
func (img *Image) FirstDataLBA() uint32 {
	return img.FATLBA() + uint32(img.NumFATs)*img.FATSize
}

// SetFAT writes value as FAT entry of cluster into every FAT copy.
func (img *Image) SetFAT(cluster, value uint32) {
	for fat := uint32(0); fat < uint32(img.NumFATs); fat++ {
		offset := int(img.FATLBA()+fat*img.FATSize)*sectorSize + int(cluster)*4
		binary.LittleEndian.PutUint32(img.Data[offset:], value)
	}
}

// Chain links the given clusters in order and terminates the chain with EOF.
func (img *Image) Chain(clusters ...uint32) {
	for i, cluster := range clusters {
		next := uint32(EOF)
		if i+1 < len(clusters) {
			next = clusters[i+1]
		}
		img.SetFAT(cluster, next)
	}
}

// Cluster returns the bytes of a data cluster.
func (img *Image) Cluster(cluster uint32) []byte {
	size := int(img.SectorsPerCluster) * sectorSize
	start := int(img.FirstDataLBA()+(cluster-2)*uint32(img.SectorsPerCluster)) * sectorSize
	return img.Data[start : start+size]
}

// WriteFile spreads data over the given clusters, links them and returns the
// directory entry describing the file.
func (img *Image) WriteFile(name string, data []byte, clusters ...uint32) Entry {
	rest := data
	for _, cluster := range clusters {
		rest = rest[copy(img.Cluster(cluster), rest):]
	}
	img.Chain(clusters...)

	first := uint32(0)
	if len(clusters) > 0 {
		first = clusters[0]
	}
	return Entry{
		Name:    name,
		Attr:    0x20,
		Cluster: first,
		Size:    uint32(len(data)),
	}
}

// Entry is a short directory entry.
type Entry struct {
	// Name is the raw 11 byte 8.3 name. Shorter names are padded with spaces.
	Name      string
	Attr      byte
	Cluster   uint32
	Size      uint32
	WriteTime uint16
	WriteDate uint16
}

// Bytes encodes the entry as 32 byte directory record.
func (e Entry) Bytes() []byte {
	r := make([]byte, 32)
	copy(r[0:11], pad(e.Name, 11))
	r[11] = e.Attr
	binary.LittleEndian.PutUint16(r[20:], uint16(e.Cluster>>16))
	binary.LittleEndian.PutUint16(r[22:], e.WriteTime)
	binary.LittleEndian.PutUint16(r[24:], e.WriteDate)
	binary.LittleEndian.PutUint16(r[26:], uint16(e.Cluster))
	binary.LittleEndian.PutUint32(r[28:], e.Size)
	return r
}

// PutEntry writes e as the index-th record of the directory cluster.
func (img *Image) PutEntry(cluster uint32, index int, e Entry) {
	copy(img.Cluster(cluster)[index*32:], e.Bytes())
}

// PutRaw writes a raw record as the index-th record of the directory cluster.
func (img *Image) PutRaw(cluster uint32, index int, record []byte) {
	copy(img.Cluster(cluster)[index*32:index*32+32], record)
}

// Reader returns a reader over the image data.
func (img *Image) Reader() *bytes.Reader {
	return bytes.NewReader(img.Data)
}

// Save writes the image into name of the given filesystem.
func (img *Image) Save(fs afero.Fs, name string) error {
	return afero.WriteFile(fs, name, img.Data, 0644)
}

func pad(s string, n int) []byte {
	b := bytes.Repeat([]byte{' '}, n)
	copy(b, s)
	return b
}

// Sample builds the image used by most tests:
//  /FILE.TXT    1234 bytes announced, cluster 3 (only "Hello FAT32" is stored)
//  /HELLO.TXT   "Hello FAT32", cluster 4
//  /DOCS/       directory in cluster 5
//  /DOCS/BIG.BIN 1300 bytes over the clusters 6, 8, 9
//  volume label entry, a deleted and a long name record in the root directory.
func Sample() *Image {
	img := New(DefaultGeometry(16))
	root := img.RootCluster
	img.Chain(root)

	img.PutEntry(root, 0, Entry{Name: "TINYFAT", Attr: 0x08})
	img.PutEntry(root, 1, Entry{Name: "\xE5ONE    TXT", Attr: 0x20, Cluster: 7, Size: 4})

	lfn := Entry{Name: "AH\x00e\x00l\x00l\x00o", Attr: 0x0F}
	img.PutEntry(root, 2, lfn)

	file := img.WriteFile("FILE    TXT", []byte("Hello FAT32"), 3)
	file.Size = 1234
	img.PutEntry(root, 3, file)

	img.PutEntry(root, 4, img.WriteFile("HELLO   TXT", []byte("Hello FAT32"), 4))
	img.PutEntry(root, 5, Entry{Name: "DOCS", Attr: 0x10, Cluster: 5, WriteDate: 0x5A21, WriteTime: 0x6000})

	docs := uint32(5)
	img.Chain(docs)
	img.PutEntry(docs, 0, Entry{Name: ".", Attr: 0x10, Cluster: docs})
	img.PutEntry(docs, 1, Entry{Name: "..", Attr: 0x10, Cluster: 0})
	img.PutEntry(docs, 2, img.WriteFile("BIG     BIN", Pattern(1300), 6, 8, 9))

	return img
}

// Pattern returns n bytes of a repeating, position dependent pattern.
func Pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
