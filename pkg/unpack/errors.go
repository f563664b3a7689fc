package unpack

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotArchive    = errors.New("source is not a zip archive")
	ErrEntryTooLarge = errors.New("archive entry exceeds size limit")
)

// Error is returned when a book archive cannot be extracted. It is fatal to
// the load that triggered it, and nothing retries it.
type Error struct {
	BookID     int
	SourcePath string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unpack book %d from %s: %v", e.BookID, e.SourcePath, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
