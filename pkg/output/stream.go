package output

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Stream is a Target that delivers a download to a plain io.Writer, such as
// stdout. Appends pass through a buffer that is pushed out on Flush.
// Positioned writes are staged in memory and emitted in offset order on
// Close, including any gaps left by failed chunks as zero bytes.
type Stream struct {
	w *bufio.Writer

	mu         sync.Mutex
	staged     []byte
	positioned bool
}

var _ Target = &Stream{}

func NewStream(w io.Writer) *Stream {
	return &Stream{w: bufio.NewWriterSize(w, appendBufferSize)}
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *Stream) Flush() error {
	return s.w.Flush()
}

func (s *Stream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(s.staged)) {
		s.staged = append(s.staged, make([]byte, end-int64(len(s.staged)))...)
	}
	copy(s.staged[off:], p)
	s.positioned = true
	return len(p), nil
}

// Close emits staged bytes and flushes. The underlying writer is left open.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positioned {
		if _, err := s.w.Write(s.staged); err != nil {
			return fmt.Errorf("error writing to stream: %w", err)
		}
		s.staged = nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("error writing to stream: %w", err)
	}
	return nil
}
