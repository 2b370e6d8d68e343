package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// CompressedSuffix is appended to report files written with compression.
const CompressedSuffix = ".lz4"

const reportFilePerm = 0o640

// Extension returns the file extension used for a sorted report in format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".csv"
	}
}

// File is an open report destination. Close flushes the compressor, if any,
// before closing the underlying file.
type File struct {
	io.Writer

	Path string

	file *os.File
	zw   *lz4.Writer
}

// Create opens path for writing, truncating it. With compress set the file is
// written as an LZ4 frame and CompressedSuffix is appended to the path.
func Create(path string, compress bool) (*File, error) {
	if compress && !strings.HasSuffix(path, CompressedSuffix) {
		path += CompressedSuffix
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFilePerm)
	if err != nil {
		return nil, fmt.Errorf("create report %s: %w", path, err)
	}

	rf := &File{Writer: f, Path: path, file: f}

	if compress {
		rf.zw = lz4.NewWriter(f)
		rf.Writer = rf.zw
	}

	return rf, nil
}

// Close finalizes the report file.
func (rf *File) Close() error {
	var zErr error
	if rf.zw != nil {
		zErr = rf.zw.Close()
	}

	return errors.Join(zErr, rf.file.Close())
}

// Open returns a reader over a report file, transparently decompressing files
// that carry CompressedSuffix.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}

	if !strings.HasSuffix(path, CompressedSuffix) {
		return f, nil
	}

	return struct {
		io.Reader
		io.Closer
	}{lz4.NewReader(f), f}, nil
}
