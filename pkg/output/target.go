package output

import (
	"fmt"
	"io"
	"os"
)

const (
	KindFile   = "file"
	KindNull   = "null"
	KindStdout = "stdout"
)

// Target is the destination of a download. Sequential downloads use Write
// and Flush; parallel downloads use WriteAt. A Target is owned by a single
// download and must be closed whatever the outcome.
type Target interface {
	io.Writer
	io.WriterAt
	Flush() error
	Close() error
}

// Open creates the target of the given kind. File targets are created or
// truncated at path; null and stdout targets ignore it.
func Open(kind, path string) (Target, error) {
	switch kind {
	case "", KindFile:
		return CreateFile(path)
	case KindNull:
		return &Null{}, nil
	case KindStdout:
		return NewStream(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown output consumer: %s", kind)
	}
}
