package download

import (
	"fmt"
	"math"
)

// ByteRange is an inclusive span of bytes in a remote resource, matching the
// semantics of the HTTP Range header.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// Header returns the value for a Range request header.
func (r ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

func (r ByteRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// PlanRanges splits the first chunkSize*chunkCount bytes of a resource into
// chunkCount contiguous ranges of chunkSize bytes each, starting at offset 0.
// The order of the result is the assembly order for sequential downloads.
func PlanRanges(chunkSize int64, chunkCount int) ([]ByteRange, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, chunkSize)
	}
	if chunkCount <= 0 {
		return nil, fmt.Errorf("%w: chunk count must be positive, got %d", ErrInvalidConfiguration, chunkCount)
	}
	if chunkSize > math.MaxInt64/int64(chunkCount) {
		return nil, fmt.Errorf("%w: %d chunks of %d bytes overflows the addressable size", ErrInvalidConfiguration, chunkCount, chunkSize)
	}

	ranges := make([]ByteRange, chunkCount)
	for i := range ranges {
		start := int64(i) * chunkSize
		ranges[i] = ByteRange{Start: start, End: start + chunkSize - 1}
	}
	return ranges, nil
}

// TotalSize returns the number of bytes covered by ranges.
func TotalSize(ranges []ByteRange) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}
