package rget

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/replicate/rget/pkg/download"
)

const (
	DefaultDest       = "download.dat"
	DefaultChunkSize  = 1024 * 1024
	DefaultChunkCount = 4
)

// Request describes a single download: the first ChunkCount*ChunkSize bytes
// of URL, written to Dest.
type Request struct {
	// ID correlates the log lines of one download.
	ID         string
	URL        string
	Dest       string
	ChunkSize  int64
	ChunkCount int
	Mode       download.Mode
}

// NewRequest returns a validated Request with default chunking. An empty
// dest selects DefaultDest.
func NewRequest(urlString, dest string, mode download.Mode) (Request, error) {
	if dest == "" {
		dest = DefaultDest
	}
	if mode == "" {
		mode = download.SequentialModeName
	}
	req := Request{
		ID:         uuid.NewString(),
		URL:        urlString,
		Dest:       dest,
		ChunkSize:  DefaultChunkSize,
		ChunkCount: DefaultChunkCount,
		Mode:       mode,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate reports an error wrapping download.ErrInvalidConfiguration for
// any field that cannot be downloaded as-is.
func (r Request) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: resource URL is required", download.ErrInvalidConfiguration)
	}
	parsed, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL %q: %v", download.ErrInvalidConfiguration, r.URL, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: URL must be absolute: %s", download.ErrInvalidConfiguration, r.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported URL scheme %q", download.ErrInvalidConfiguration, parsed.Scheme)
	}
	if r.Dest == "" {
		return fmt.Errorf("%w: destination is required", download.ErrInvalidConfiguration)
	}
	if r.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", download.ErrInvalidConfiguration, r.ChunkSize)
	}
	if r.ChunkCount <= 0 {
		return fmt.Errorf("%w: chunk count must be positive, got %d", download.ErrInvalidConfiguration, r.ChunkCount)
	}
	if r.Mode != download.SequentialModeName && r.Mode != download.ParallelModeName {
		return fmt.Errorf("%w: unknown mode %q", download.ErrInvalidConfiguration, r.Mode)
	}
	return nil
}
