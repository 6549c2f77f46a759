package download

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/replicate/rget/pkg/client"
)

type Options struct {
	// Timeout bounds the fetch and write phase of a parallel download. If
	// set to zero, DefaultTimeout will be used.
	Timeout time.Duration

	// VerifyLength rejects chunk payloads whose length differs from the
	// requested range.
	VerifyLength bool

	// RateLimit caps the combined read rate, in bytes per second, of every
	// chunk fetched through the same fetcher. Zero means unlimited.
	RateLimit int64

	Client client.Options
}

// NewHTTPFetcher builds a fetcher backed by a fresh HTTP client.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	fetcher := &HTTPFetcher{
		Client:       client.NewHTTPClient(opts.Client),
		VerifyLength: opts.VerifyLength,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateLimit
		if burst > math.MaxInt32 {
			burst = math.MaxInt32
		}
		fetcher.Limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(burst))
	}
	return fetcher
}
