package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/replicate/rget/pkg/logging"
)

const DefaultTimeout = 20 * time.Second

// ParallelAssembler fetches every range concurrently and writes each payload
// at its own offset, so the result does not depend on completion order.
type ParallelAssembler struct {
	Fetcher Fetcher

	// Timeout bounds the whole fetch and write phase. If set to zero,
	// DefaultTimeout will be used.
	Timeout time.Duration
}

// Run starts one task per range and waits for all of them or the deadline,
// whichever comes first. When a task fails the remaining tasks are still
// awaited and the first error is returned. When the deadline passes, no task
// writes to out once Run has returned.
func (a *ParallelAssembler) Run(ctx context.Context, url string, ranges []ByteRange, out io.WriterAt) error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w := &gatedWriter{out: out}
	var eg errgroup.Group
	for i, r := range ranges {
		eg.Go(func() error {
			return a.fetchAndWrite(ctx, i, url, r, w)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- eg.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ErrDownloadTimedOut, timeout, err)
		}
		return err
	case <-ctx.Done():
		w.close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger := logging.GetLogger()
			logger.Warn().
				Str("url", url).
				Str("timeout", timeout.String()).
				Msg("Download timed out, abandoning outstanding chunks")
			return fmt.Errorf("%w after %s", ErrDownloadTimedOut, timeout)
		}
		return ctx.Err()
	}
}

func (a *ParallelAssembler) fetchAndWrite(ctx context.Context, index int, url string, r ByteRange, w *gatedWriter) error {
	logger := logging.GetLogger()
	chunkStart := time.Now()

	data, err := a.Fetcher.Fetch(ctx, url, r)
	if err != nil {
		logger.Debug().Err(err).Int("chunk", index).Str("range", r.String()).Msg("Chunk failed")
		return err
	}
	if err := w.writeAt(data, r.Start); err != nil {
		return fmt.Errorf("error writing chunk %d: %w", index, err)
	}
	logger.Debug().
		Int("chunk", index).
		Str("range", r.String()).
		Str("elapsed", fmt.Sprintf("%.3fs", time.Since(chunkStart).Seconds())).
		Msg("Chunk written")
	return nil
}

// gatedWriter serializes positioned writes to a shared output and stops
// accepting them once the waiter has given up.
type gatedWriter struct {
	mu     sync.Mutex
	out    io.WriterAt
	closed bool
}

func (w *gatedWriter) writeAt(p []byte, off int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errAbandoned
	}
	n, err := w.out.WriteAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// close waits for any in-progress write to finish.
func (w *gatedWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
