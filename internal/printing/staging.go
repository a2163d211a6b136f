package printing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	// StreamThreshold is the payload size above which raw data is staged
	// to a temporary file and submitted through the file path.
	StreamThreshold = 4 * 1024 * 1024
	// ChunkSize bounds every read and write on the submission paths.
	ChunkSize = 64 * 1024
)

// ShouldStage reports whether a raw payload of n bytes must be staged.
func ShouldStage(n int) bool {
	return n > StreamThreshold
}

// StagedFile is a temporary file owned by one submission. Close removes it
// and is safe to call more than once.
type StagedFile struct {
	Path string
	once sync.Once
	err  error
}

// Close deletes the staged file.
func (s *StagedFile) Close() error {
	s.once.Do(func() {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.err = err
		}
	})
	return s.err
}

// StageBytes writes data to a new file in dir (os.TempDir when empty) in
// ChunkSize pieces. A partial write is a failure and leaves no file behind.
func StageBytes(dir string, data []byte) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, "printbridge-*.prn")
	if err != nil {
		return nil, Wrap(err, CodeUnknown, "failed to create temporary file")
	}
	staged := &StagedFile{Path: f.Name()}

	if _, err := CopyChunked(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = staged.Close()
		return nil, Wrap(err, CodeUnknown, "failed to write temporary file")
	}
	if err := f.Close(); err != nil {
		_ = staged.Close()
		return nil, Wrap(err, CodeUnknown, "failed to close temporary file")
	}
	return staged, nil
}

// OpenSource opens an input file for submission and returns its size.
// Any failure, including a directory path, is FILE_NOT_FOUND.
func OpenSource(path string) (*os.File, int64, error) {
	if path == "" {
		return nil, 0, InvalidArguments("file path is required")
	}
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		e := FileNotFound(path)
		e.Err = err
		return nil, 0, e
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		e := FileNotFound(path)
		e.Err = err
		return nil, 0, e
	}
	return f, info.Size(), nil
}

// ErrShortWrite is returned when a sink accepts fewer bytes than offered.
var ErrShortWrite = errors.New("short write to spooler")

// CopyChunked copies src to dst in ChunkSize pieces. A short write stops
// the copy and fails.
func CopyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if nw != nr {
				return total, fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, nw, nr)
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

type chunkedReader struct {
	r io.Reader
}

// ChunkedReader caps every Read from r at ChunkSize bytes.
func ChunkedReader(r io.Reader) io.Reader {
	return &chunkedReader{r: r}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > ChunkSize {
		p = p[:ChunkSize]
	}
	return c.r.Read(p)
}
