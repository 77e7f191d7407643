package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ReaderAtCloser combines random access reads with resource release. The
// positioned decryptor consumes ciphertext exclusively through ReadAt, so
// backends never need to stream whole objects for a ranged request.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Backend stores and retrieves ciphertext blobs by key. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Put writes the full ciphertext for key, replacing any existing
	// object, and returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns a random-access reader over the ciphertext of key and
	// its total size. The caller closes the reader when done.
	Open(ctx context.Context, key string) (ReaderAtCloser, int64, error)

	// Delete removes the object. Deleting a missing key returns
	// ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}
