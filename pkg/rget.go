package rget

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/replicate/rget/pkg/download"
	"github.com/replicate/rget/pkg/logging"
	"github.com/replicate/rget/pkg/output"
)

// Getter runs downloads: it plans the ranges of a Request, owns the output
// for the lifetime of the download and dispatches to the assembler for the
// request's mode.
type Getter struct {
	Fetcher download.Fetcher

	// Timeout bounds parallel downloads. If set to zero,
	// download.DefaultTimeout will be used.
	Timeout time.Duration

	// Output is the consumer kind passed to output.Open. Empty means a file.
	Output string

	// ProgressWriter, when set, receives a progress bar for every download.
	ProgressWriter io.Writer
}

type Result struct {
	Dest    string
	Size    int64
	Elapsed time.Duration
}

// Execute downloads req. An empty Dest selects DefaultDest and an empty Mode
// selects sequential. Any error returned is a *download.DownloadError
// wrapping the first concrete cause. On failure the partially written output
// is left in place.
func (g *Getter) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Dest == "" {
		req.Dest = DefaultDest
	}
	if req.Mode == "" {
		req.Mode = download.SequentialModeName
	}
	fail := func(cause error) (Result, error) {
		return Result{}, &download.DownloadError{URL: req.URL, Mode: req.Mode, Err: cause}
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	if g.Fetcher == nil {
		return fail(fmt.Errorf("%w: no fetcher configured", download.ErrInvalidConfiguration))
	}
	ranges, err := download.PlanRanges(req.ChunkSize, req.ChunkCount)
	if err != nil {
		return fail(err)
	}
	size := download.TotalSize(ranges)

	logger := logging.GetLogger().With().
		Str("download_id", req.ID).
		Str("url", req.URL).
		Str("dest", req.Dest).
		Logger()

	target, err := output.Open(g.Output, req.Dest)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", download.ErrOutputUnavailable, err))
	}
	if g.ProgressWriter != nil {
		target = output.WithProgress(target, size, filepath.Base(req.Dest), g.ProgressWriter)
	}

	logger.Debug().
		Str("mode", string(req.Mode)).
		Int("chunks", len(ranges)).
		Str("chunk_size", humanize.IBytes(uint64(req.ChunkSize))).
		Msg("Downloading")

	startTime := time.Now()
	runErr := g.assemble(ctx, req, ranges, target)
	closeErr := target.Close()
	elapsed := time.Since(startTime)

	if runErr != nil {
		event := logger.Warn().Err(runErr)
		if closeErr != nil {
			event = event.AnErr("close_error", closeErr)
		}
		event.Msg("Download failed, partial output left in place")
		return fail(runErr)
	}
	if closeErr != nil {
		return fail(fmt.Errorf("error closing output: %w", closeErr))
	}

	throughput := "n/a"
	if elapsed > 0 {
		throughput = fmt.Sprintf("%s/s", humanize.Bytes(uint64(float64(size)/elapsed.Seconds())))
	}
	logger.Info().
		Str("mode", string(req.Mode)).
		Str("size", humanize.Bytes(uint64(size))).
		Str("elapsed", fmt.Sprintf("%.3fs", elapsed.Seconds())).
		Str("throughput", throughput).
		Msg("Complete")
	return Result{Dest: req.Dest, Size: size, Elapsed: elapsed}, nil
}

func (g *Getter) assemble(ctx context.Context, req Request, ranges []download.ByteRange, target output.Target) error {
	if req.Mode == download.ParallelModeName {
		assembler := &download.ParallelAssembler{Fetcher: g.Fetcher, Timeout: g.Timeout}
		return assembler.Run(ctx, req.URL, ranges, target)
	}
	assembler := &download.SequentialAssembler{Fetcher: g.Fetcher}
	return assembler.Run(ctx, req.URL, ranges, target)
}
