package download

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned for bad request or range parameters,
	// before any I/O takes place.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDownloadTimedOut is returned when a parallel download exceeds its deadline.
	ErrDownloadTimedOut = errors.New("download timed out")
	// ErrOutputUnavailable is returned when the destination cannot be opened for writing.
	ErrOutputUnavailable = errors.New("output unavailable")
	// ErrLengthMismatch is wrapped by a FetchError when the payload size differs
	// from the requested range.
	ErrLengthMismatch = errors.New("unexpected payload length")

	errUnexpectedStatus = errors.New("unexpected status")
	errAbandoned        = errors.New("download abandoned before write")
)

// FetchError describes a failed range request. StatusCode is zero when the
// request never produced a response.
type FetchError struct {
	Range      ByteRange
	StatusCode int
	Err        error
}

var _ error = &FetchError{}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching bytes %s: status code %d: %v", e.Range, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching bytes %s: %v", e.Range, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DownloadError is what the orchestrator hands back to callers. Err is the
// first concrete cause and can be inspected with errors.Is and errors.As.
type DownloadError struct {
	URL  string
	Mode Mode
	Err  error
}

var _ error = &DownloadError{}

func (e *DownloadError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s download of %s failed: %v", e.Mode, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
