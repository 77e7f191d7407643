package crypto

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a decrypt call is made with a
	// negative position or length, or a buffer window that does not fit.
	ErrInvalidRange = errors.New("invalid decrypt range")

	// ErrReaderClosed is returned by operations on a closed reader.
	ErrReaderClosed = errors.New("positioned reader is closed")

	// ErrUnknownTransformation is returned when a transformation name is
	// not registered.
	ErrUnknownTransformation = errors.New("unknown transformation")
)

// CipherError wraps a failure of the underlying cipher primitive. Op is the
// primitive operation that failed: "init", "update" or "final".
type CipherError struct {
	Op  string
	Err error
}

func (e *CipherError) Error() string {
	return fmt.Sprintf("cipher %s failed: %v", e.Op, e.Err)
}

func (e *CipherError) Unwrap() error {
	return e.Err
}
