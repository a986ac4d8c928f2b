package tinyfat

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aligator/tinyfat/internal/fattest"
	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestReaderDevice_ReadSector(t *testing.T) {
	image := make([]byte, 3*SectorSize)
	for i := range image {
		image[i] = byte(i / SectorSize)
	}

	tests := []struct {
		name    string
		image   []byte
		lba     uint32
		bufSize int
		want    byte
		wantErr error
	}{
		{name: "first sector", image: image, lba: 0, bufSize: SectorSize, want: 0},
		{name: "last sector", image: image, lba: 2, bufSize: SectorSize, want: 2},
		{name: "bigger buffer", image: image, lba: 1, bufSize: 2 * SectorSize, want: 1},
		{name: "short buffer", image: image, lba: 0, bufSize: SectorSize - 1, wantErr: ErrShortBuffer},
		{name: "behind the end", image: image, lba: 3, bufSize: SectorSize, wantErr: ErrDeviceIO},
		{name: "partial sector", image: image[:SectorSize+100], lba: 1, bufSize: SectorSize, wantErr: ErrDeviceIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewReaderDevice(bytes.NewReader(tt.image))
			buf := make([]byte, tt.bufSize)

			err := dev.ReadSector(tt.lba, buf)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReaderDevice.ReadSector() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if !bytes.Equal(buf[:SectorSize], bytes.Repeat([]byte{tt.want}, SectorSize)) {
				t.Errorf("ReaderDevice.ReadSector() read the wrong sector")
			}
			for _, b := range buf[SectorSize:] {
				if b != 0 {
					t.Errorf("ReaderDevice.ReadSector() wrote behind the sector")
					break
				}
			}
		})
	}
}

func TestPartitionDevice_ReadSector(t *testing.T) {
	tests := []struct {
		name    string
		start   uint32
		count   uint32
		lba     uint32
		wantLBA uint32
		wantErr error
	}{
		{name: "first sector", start: 2048, count: 100, lba: 0, wantLBA: 2048},
		{name: "last sector", start: 2048, count: 100, lba: 99, wantLBA: 2147},
		{name: "outside", start: 2048, count: 100, lba: 100, wantErr: ErrDeviceIO},
		{name: "open end", start: 63, lba: 1000, wantLBA: 1063},
		{name: "overflow", start: 10, lba: ^uint32(0) - 5, wantErr: ErrDeviceIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			defer mockCtrl.Finish()

			dev := NewMockBlockDevice(mockCtrl)
			if tt.wantErr == nil {
				dev.EXPECT().ReadSector(tt.wantLBA, gomock.Any()).Return(nil)
			}

			err := NewPartitionDevice(dev, tt.start, tt.count).ReadSector(tt.lba, make([]byte, SectorSize))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PartitionDevice.ReadSector() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPartitionDevice_Mount(t *testing.T) {
	img := fattest.Sample()

	// Put the volume behind 4 sectors of something else.
	disk := append(make([]byte, 4*SectorSize), img.Data...)

	fs, err := Mount(NewPartitionDevice(NewReaderDevice(bytes.NewReader(disk)), 4, uint32(len(img.Data)/SectorSize)))
	require.NoError(t, err)

	entry, err := fs.Lookup("HELLO.TXT")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := fs.ReadFile(entry, buf)
	require.NoError(t, err)
	require.Equal(t, "Hello FAT32", string(buf[:n]))
}

func TestOpenImage(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, fattest.Sample().Save(memFs, "sample.img"))
	require.NoError(t, afero.WriteFile(memFs, "odd.img", make([]byte, SectorSize+1), 0644))
	require.NoError(t, memFs.Mkdir("dir.img", 0755))

	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{name: "valid image", file: "sample.img"},
		{name: "size not a multiple of the sector size", file: "odd.img", wantErr: ErrMalformed},
		{name: "directory", file: "dir.img", wantErr: ErrMalformed},
		{name: "missing", file: "missing.img", wantErr: ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := OpenImage(memFs, tt.file)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer dev.Close()

			buf := make([]byte, SectorSize)
			require.NoError(t, dev.ReadSector(0, buf))
			require.Equal(t, []byte{0x55, 0xAA}, buf[510:])
		})
	}
}
