package session

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/epub"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/unpack"
)

var (
	ErrLoadInFlight = errors.New("a load is already in flight for this session")
	ErrNotReady     = errors.New("session is not ready")
	ErrClosed       = errors.New("session is closed")
)

// LoadTimeoutError means loading took longer than the configured timeout.
// The load was cancelled and any late result discarded.
type LoadTimeoutError struct {
	BookID  int
	Timeout time.Duration
}

func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("loading book %d did not finish within %s", e.BookID, e.Timeout)
}

// PersistenceError wraps a failed progress write. Sessions log it and keep
// going; the next checkpoint carries the latest state.
type PersistenceError struct {
	BookID int
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s for book %d: %v", e.Op, e.BookID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// httpError maps session errors onto API errors.
func httpError(err error) error {
	var timeoutErr *LoadTimeoutError
	var unpackErr *unpack.Error
	var structureErr *epub.StructureParseError

	switch {
	case errors.As(err, &timeoutErr):
		return errcodes.LoadFailed(errcodes.KindLoadTimeout, "The book took too long to open.")
	case errors.As(err, &unpackErr):
		return errcodes.LoadFailed(errcodes.KindUnpack, "The book archive could not be extracted.")
	case errors.As(err, &structureErr):
		return errcodes.LoadFailed(errcodes.KindStructureParse, "The book's structure could not be read.")
	case errors.Is(err, unpack.ErrUnsupportedFormat):
		return errcodes.UnsupportedFormat("")
	case errors.Is(err, ErrLoadInFlight):
		return errcodes.Conflict("The book is already being opened.")
	case errors.Is(err, ErrNotReady):
		return errcodes.Conflict("The session is not ready.")
	case errors.Is(err, ErrClosed):
		return errcodes.NotFound("Session")
	}
	return err
}
