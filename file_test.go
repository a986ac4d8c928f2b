package tinyfat

import (
	"errors"
	"io"
	"os"
	"reflect"
	"syscall"
	"testing"

	"github.com/aligator/tinyfat/internal/fattest"
	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
)

// fileTestsError is just a error used in tests for File.
var fileTestsError = errors.New("a super error")

var (
	testFileEntry = entryOf(fattest.Entry{Name: "HELLO   TXT", Attr: AttrArchive, Cluster: 4, Size: 11})
	testDirEntry  = entryOf(fattest.Entry{Name: "DOCS", Attr: AttrDirectory, Cluster: 5})
)

func TestFile_Close(t *testing.T) {
	f := &File{
		fs:     &Fs{},
		path:   "any path",
		entry:  testFileEntry,
		offset: 7,
	}
	if err := f.Close(); err != nil {
		t.Errorf("File.Close() error = %v", err)
	}

	if *f != (File{}) {
		t.Errorf("File.Close() did not reset all fields: File = %v", *f)
	}
}

func TestFile_Read(t *testing.T) {
	type mock struct {
		readAtResult []byte
		readAtError  error
	}
	tests := []struct {
		name     string
		mockData mock
		entry    DirEntry
		offset   int64
		p        []byte
		wantN    int
		wantErr  error
	}{
		{
			name:     "simple file",
			mockData: mock{readAtResult: []byte("Hello FAT32")},
			entry:    testFileEntry,
			p:        make([]byte, 11),
			wantN:    11,
		},
		{
			name:     "simple file with offset",
			mockData: mock{readAtResult: []byte(" FAT32")},
			entry:    testFileEntry,
			offset:   5,
			p:        make([]byte, 6),
			wantN:    6,
		},
		{
			name: "error while reading",
			mockData: mock{
				readAtResult: []byte{'H'}, // Simulate error after some bytes are already read.
				readAtError:  fileTestsError,
			},
			entry:   testFileEntry,
			p:       make([]byte, 11),
			wantN:   1,
			wantErr: fileTestsError,
		},
		{
			name:     "file smaller than buffer",
			mockData: mock{readAtResult: []byte("Hello FAT32"), readAtError: io.EOF},
			entry:    testFileEntry,
			p:        make([]byte, 20),
			wantN:    11,
			wantErr:  io.EOF,
		},
		{
			name:    "offset at the end",
			entry:   testFileEntry,
			offset:  11,
			p:       make([]byte, 20),
			wantN:   0,
			wantErr: io.EOF,
		},
		{
			name:  "empty buffer",
			entry: testFileEntry,
			p:     []byte{},
			wantN: 0,
		},
		{
			name:    "directory",
			entry:   testDirEntry,
			p:       make([]byte, 20),
			wantN:   0,
			wantErr: syscall.EISDIR,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			mockFs := NewMockfatFileFs(mockCtrl)
			mockFs.EXPECT().
				readFileAt(tt.entry, tt.offset, int64(len(tt.p))).
				MaxTimes(1).
				Return(tt.mockData.readAtResult, tt.mockData.readAtError)

			f := &File{
				fs:     mockFs,
				entry:  tt.entry,
				offset: tt.offset,
			}

			gotN, err := f.Read(tt.p)

			mockCtrl.Finish()

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("File.Read() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if gotN != tt.wantN {
				t.Errorf("File.Read() gotN = %v, want %v", gotN, tt.wantN)
			}
			if f.offset != tt.offset+int64(gotN) {
				t.Errorf("File.Read() offset = %v, want %v", f.offset, tt.offset+int64(gotN))
			}
		})
	}
}

func TestFile_ReadAt(t *testing.T) {
	tests := []struct {
		name       string
		result     []byte
		resultErr  error
		off        int64
		p          []byte
		wantN      int
		wantErr    error
		wantCalled bool
	}{
		{
			name:       "whole file",
			result:     []byte("Hello FAT32"),
			p:          make([]byte, 11),
			wantN:      11,
			wantCalled: true,
		},
		{
			name:       "middle",
			result:     []byte("lo F"),
			off:        3,
			p:          make([]byte, 4),
			wantN:      4,
			wantCalled: true,
		},
		{
			name:       "less than requested",
			result:     []byte("32"),
			off:        9,
			p:          make([]byte, 4),
			wantN:      2,
			wantErr:    io.EOF,
			wantCalled: true,
		},
		{
			name:       "read error",
			result:     []byte("He"),
			resultErr:  fileTestsError,
			p:          make([]byte, 4),
			wantN:      2,
			wantErr:    fileTestsError,
			wantCalled: true,
		},
		{
			name:    "behind the end",
			off:     12,
			p:       make([]byte, 4),
			wantErr: io.EOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			defer mockCtrl.Finish()

			mockFs := NewMockfatFileFs(mockCtrl)
			call := mockFs.EXPECT().
				readFileAt(testFileEntry, tt.off, int64(len(tt.p))).
				Return(tt.result, tt.resultErr)
			if !tt.wantCalled {
				call.Times(0)
			}

			f := &File{
				fs:     mockFs,
				entry:  testFileEntry,
				offset: 1,
			}

			gotN, err := f.ReadAt(tt.p, tt.off)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("File.ReadAt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotN != tt.wantN {
				t.Errorf("File.ReadAt() gotN = %v, want %v", gotN, tt.wantN)
			}
			if f.offset != 1 {
				t.Errorf("File.ReadAt() changed the offset to %v", f.offset)
			}
		})
	}
}

func TestFile_Seek(t *testing.T) {
	type args struct {
		offset int64
		whence int
	}
	tests := []struct {
		name       string
		offset     int64
		args       args
		want       int64
		wantOffset int64
		wantErr    error
	}{
		{name: "from start", offset: 3, args: args{offset: 5, whence: io.SeekStart}, want: 5, wantOffset: 5},
		{name: "from current", offset: 3, args: args{offset: 5, whence: io.SeekCurrent}, want: 8, wantOffset: 8},
		{name: "backwards from current", offset: 3, args: args{offset: -3, whence: io.SeekCurrent}, want: 0, wantOffset: 0},
		{name: "from end", offset: 3, args: args{offset: -1, whence: io.SeekEnd}, want: 10, wantOffset: 10},
		{name: "exactly the end", offset: 3, args: args{offset: 0, whence: io.SeekEnd}, want: 11, wantOffset: 11},
		{name: "behind the end", offset: 3, args: args{offset: 12, whence: io.SeekStart}, wantOffset: 3, wantErr: afero.ErrOutOfRange},
		{name: "before the start", offset: 3, args: args{offset: -4, whence: io.SeekCurrent}, wantOffset: 3, wantErr: afero.ErrOutOfRange},
		{name: "invalid whence", offset: 3, args: args{offset: 0, whence: 42}, wantOffset: 3, wantErr: syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{
				entry:  testFileEntry,
				offset: tt.offset,
			}
			got, err := f.Seek(tt.args.offset, tt.args.whence)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("File.Seek() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("File.Seek() got = %v, want %v", got, tt.want)
			}
			if f.offset != tt.wantOffset {
				t.Errorf("File.Seek() offset = %v, want %v", f.offset, tt.wantOffset)
			}
		})
	}
}

func TestFile_Readdir(t *testing.T) {
	content := []DirEntry{
		entryOf(fattest.Entry{Name: "A       TXT", Attr: AttrArchive, Size: 1}),
		entryOf(fattest.Entry{Name: "B       TXT", Attr: AttrArchive, Size: 2}),
		entryOf(fattest.Entry{Name: "SUB", Attr: AttrDirectory}),
	}

	tests := []struct {
		name       string
		offset     int64
		count      int
		want       []string
		wantOffset int64
		wantErr    error
	}{
		{name: "all", count: 0, want: []string{"A.TXT", "B.TXT", "SUB"}, wantOffset: 3},
		{name: "all with negative count", count: -1, want: []string{"A.TXT", "B.TXT", "SUB"}, wantOffset: 3},
		{name: "first two", count: 2, want: []string{"A.TXT", "B.TXT"}, wantOffset: 2},
		{name: "rest", offset: 2, count: 2, want: []string{"SUB"}, wantOffset: 3},
		{name: "nothing left", offset: 3, count: 2, want: []string{}, wantOffset: 3, wantErr: io.EOF},
		{name: "nothing left without count", offset: 3, count: 0, want: []string{}, wantOffset: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			defer mockCtrl.Finish()

			mockFs := NewMockfatFileFs(mockCtrl)
			mockFs.EXPECT().readDir(testDirEntry).Return(content, nil)

			f := &File{
				fs:     mockFs,
				entry:  testDirEntry,
				offset: tt.offset,
			}

			got, err := f.Readdirnames(tt.count)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("File.Readdirnames() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("File.Readdirnames() = %v, want %v", got, tt.want)
			}
			if f.offset != tt.wantOffset {
				t.Errorf("File.Readdirnames() offset = %v, want %v", f.offset, tt.wantOffset)
			}
		})
	}
}

func TestFile_Readdir_Errors(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	mockFs := NewMockfatFileFs(mockCtrl)
	mockFs.EXPECT().readDir(testDirEntry).Return(nil, fileTestsError)

	dir := &File{fs: mockFs, entry: testDirEntry}
	if _, err := dir.Readdir(0); !errors.Is(err, fileTestsError) || !errors.Is(err, ErrReadDir) {
		t.Errorf("File.Readdir() error = %v, want %v", err, fileTestsError)
	}

	file := &File{fs: mockFs, entry: testFileEntry}
	if _, err := file.Readdir(0); !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("File.Readdir() error = %v, want %v", err, syscall.ENOTDIR)
	}
}

func TestFile_Stat(t *testing.T) {
	f := &File{entry: testFileEntry}
	got, err := f.Stat()
	if err != nil {
		t.Fatalf("File.Stat() error = %v", err)
	}
	if got.Name() != "HELLO.TXT" || got.Size() != 11 || got.IsDir() {
		t.Errorf("File.Stat() = %v %v %v", got.Name(), got.Size(), got.IsDir())
	}
}

func TestFile_ReadOnly(t *testing.T) {
	f := &File{path: "HELLO.TXT", entry: testFileEntry}

	if _, err := f.Write([]byte("x")); !errors.Is(err, syscall.EROFS) {
		t.Errorf("File.Write() error = %v, want %v", err, syscall.EROFS)
	}
	if _, err := f.WriteAt([]byte("x"), 0); !errors.Is(err, syscall.EROFS) {
		t.Errorf("File.WriteAt() error = %v, want %v", err, syscall.EROFS)
	}
	if _, err := f.WriteString("x"); !errors.Is(err, syscall.EROFS) {
		t.Errorf("File.WriteString() error = %v, want %v", err, syscall.EROFS)
	}
	if err := f.Truncate(0); !errors.Is(err, syscall.EROFS) {
		t.Errorf("File.Truncate() error = %v, want %v", err, syscall.EROFS)
	}

	var pathErr *os.PathError
	if err := f.Truncate(0); !errors.As(err, &pathErr) || pathErr.Path != "HELLO.TXT" {
		t.Errorf("File.Truncate() error = %v, want *os.PathError for HELLO.TXT", err)
	}
}
