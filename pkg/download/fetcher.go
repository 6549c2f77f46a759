package download

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// Fetcher retrieves a single byte range of a remote resource. Implementations
// must be safe for concurrent use; they perform no retries of their own.
type Fetcher interface {
	Fetch(ctx context.Context, url string, r ByteRange) ([]byte, error)
}

// HTTPClient is the subset of *http.Client used by HTTPFetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher issues one ranged GET per call.
type HTTPFetcher struct {
	Client HTTPClient

	// VerifyLength rejects payloads that are not exactly r.Len() bytes long.
	VerifyLength bool

	// Limiter, when set, caps the combined read rate (bytes/second) of every
	// fetch sharing it.
	Limiter *rate.Limiter
}

var _ Fetcher = &HTTPFetcher{}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, r ByteRange) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Range: r, Err: fmt.Errorf("failed to create request for %s: %w", url, err)}
	}
	req.Header.Set("Range", r.Header())

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Range: r, Err: fmt.Errorf("error executing request for %s: %w", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Err: errUnexpectedStatus}
	}

	var body io.Reader = resp.Body
	if f.Limiter != nil {
		body = newRateLimitedReader(ctx, body, f.Limiter)
	}

	if !f.VerifyLength {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Err: fmt.Errorf("error reading response for %s: %w", url, err)}
		}
		return data, nil
	}

	// one byte past the range exposes a server that ignored Range
	data, err := io.ReadAll(io.LimitReader(body, r.Len()+1))
	if err != nil {
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Err: fmt.Errorf("error reading response for %s: %w", url, err)}
	}
	n := int64(len(data))
	if n < r.Len() {
		return nil, &FetchError{
			Range:      r,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: downloaded %d bytes instead of %d", ErrLengthMismatch, n, r.Len()),
		}
	}
	if n > r.Len() {
		return nil, &FetchError{
			Range:      r,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: response is longer than %d bytes", ErrLengthMismatch, r.Len()),
		}
	}
	return data, nil
}

// rateLimitedReader charges every read against a shared token bucket. Reads
// are capped at the bucket's burst so WaitN can always be satisfied.
type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func newRateLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter.Burst() <= 0 || limiter.Limit() == rate.Inf {
		return r
	}
	return &rateLimitedReader{ctx: ctx, r: r, limiter: limiter}
}

func (l *rateLimitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
