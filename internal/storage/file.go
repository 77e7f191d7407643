package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// fileBackend stores ciphertext blobs as flat files under a root directory.
// Object keys are hashed into the on-disk name, so arbitrary key strings
// never touch the filesystem namespace.
type fileBackend struct {
	root   string
	logger *logrus.Logger
}

// NewFileBackend creates the root directory if needed and returns a
// filesystem-backed store.
func NewFileBackend(root string, logger *logrus.Logger) (Backend, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &fileBackend{root: root, logger: logger}, nil
}

func (b *fileBackend) Name() string { return "file" }

func (b *fileBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	// Shard into 256 subdirectories to keep directory sizes sane.
	return filepath.Join(b.root, name[:2], name)
}

func (b *fileBackend) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	target := b.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return 0, fmt.Errorf("failed to create shard directory: %w", err)
	}

	// Write to a temp file in the same directory and rename, so readers
	// never observe a half-written object.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write object data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to flush object data: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("failed to commit object: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": n,
	}).Debug("Stored object on filesystem")
	return n, nil
}

func (b *fileBackend) Open(ctx context.Context, key string) (ReaderAtCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat object: %w", err)
	}
	return f, info.Size(), nil
}

func (b *fileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(b.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (b *fileBackend) Close() error { return nil }
