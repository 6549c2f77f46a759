package download

import (
	"fmt"
	"strings"
)

// Mode selects how chunks are fetched and assembled.
type Mode string

const (
	SequentialModeName Mode = "sequential"
	ParallelModeName   Mode = "parallel"
)

func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", SequentialModeName:
		return SequentialModeName, nil
	case ParallelModeName:
		return ParallelModeName, nil
	default:
		return "", fmt.Errorf("%w: unknown mode: %s", ErrInvalidConfiguration, name)
	}
}

// ModeFor maps the --parallel flag onto a Mode.
func ModeFor(parallel bool) Mode {
	if parallel {
		return ParallelModeName
	}
	return SequentialModeName
}
