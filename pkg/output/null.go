package output

import "sync/atomic"

// Null discards everything written to it and counts the bytes. It is useful
// for measuring network throughput without disk I/O.
type Null struct {
	written atomic.Int64
}

var _ Target = &Null{}

func (n *Null) Write(p []byte) (int, error) {
	n.written.Add(int64(len(p)))
	return len(p), nil
}

func (n *Null) WriteAt(p []byte, _ int64) (int, error) {
	return n.Write(p)
}

func (n *Null) Flush() error { return nil }

func (n *Null) Close() error { return nil }

// Written returns the number of bytes discarded so far.
func (n *Null) Written() int64 {
	return n.written.Load()
}
