package download

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/replicate/rget/pkg/logging"
)

// Appender is an append-only sink that can push buffered bytes down to the
// underlying resource.
type Appender interface {
	io.Writer
	Flush() error
}

// SequentialAssembler fetches ranges one at a time, in order, and appends
// each payload to the output. It is the reference for what the output of a
// download must look like.
type SequentialAssembler struct {
	Fetcher Fetcher
}

// Run stops at the first failed chunk. Chunks written before the failure are
// left in the output.
func (a *SequentialAssembler) Run(ctx context.Context, url string, ranges []ByteRange, out Appender) error {
	logger := logging.GetLogger()
	for i, r := range ranges {
		chunkStart := time.Now()
		data, err := a.Fetcher.Fetch(ctx, url, r)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("error writing chunk %d: %w", i, err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("error flushing chunk %d: %w", i, err)
		}
		logger.Debug().
			Int("chunk", i).
			Str("range", r.String()).
			Str("elapsed", fmt.Sprintf("%.3fs", time.Since(chunkStart).Seconds())).
			Msg("Chunk written")
	}
	return nil
}
