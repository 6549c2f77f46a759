package output

import (
	"bufio"
	"fmt"
	"os"
)

const appendBufferSize = 256 * 1024

// File is a Target backed by a file on disk. Appends are buffered until
// Flush; WriteAt goes straight to the file with pwrite and is safe to call
// from several goroutines for disjoint regions. Mixing the two on one File is
// not supported.
type File struct {
	file *os.File
	buf  *bufio.Writer
}

var _ Target = &File{}

// CreateFile creates path, truncating it if it already exists. The parent
// directory must exist.
func CreateFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	return &File{file: f, buf: bufio.NewWriterSize(f, appendBufferSize)}, nil
}

func (f *File) Name() string {
	return f.file.Name()
}

func (f *File) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *File) Flush() error {
	return f.buf.Flush()
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.file.WriteAt(p, off)
}

// Close flushes buffered appends and closes the file. The file is closed even
// if the flush fails.
func (f *File) Close() error {
	flushErr := f.buf.Flush()
	closeErr := f.file.Close()
	if flushErr != nil {
		return fmt.Errorf("error writing file: %w", flushErr)
	}
	return closeErr
}
