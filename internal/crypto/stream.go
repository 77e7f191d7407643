package crypto

import (
	"fmt"
)

const (
	// DefaultBufferSize is the scratch-buffer size used when none is
	// configured.
	DefaultBufferSize = 8192
	// minBufferSize is the smallest scratch buffer the engine accepts.
	minBufferSize = 512
)

// Stream holds the immutable cipher configuration of one encrypted byte
// stream: the transformation, the key, the base IV and the scratch-buffer
// size. It is safe for concurrent use; nothing in it is mutated after
// construction. Positioned readers compose a Stream rather than owning the
// key material themselves.
type Stream struct {
	transformation string
	key            []byte
	baseIV         []byte
	blockSize      int
	bufferSize     int
}

// NewStream validates the key and IV against the transformation and fixes
// the scratch-buffer size. bufferSize <= 0 selects the default; other
// values are clamped to a minimum of 512 and rounded down to a multiple of
// the cipher block size. Key and IV are copied.
func NewStream(transformation string, key, iv []byte, bufferSize int) (*Stream, error) {
	probe, err := NewTransform(transformation)
	if err != nil {
		return nil, err
	}
	if len(iv) != probe.IVSize() {
		return nil, &CipherError{Op: "init", Err: fmt.Errorf(
			"invalid IV size for %s: expected %d bytes, got %d", transformation, probe.IVSize(), len(iv))}
	}
	if err := probe.Init(key, iv, 0); err != nil {
		return nil, &CipherError{Op: "init", Err: err}
	}

	blockSize := probe.BlockSize()
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if bufferSize < minBufferSize {
		bufferSize = minBufferSize
	}
	bufferSize -= bufferSize % blockSize

	return &Stream{
		transformation: transformation,
		key:            append([]byte(nil), key...),
		baseIV:         append([]byte(nil), iv...),
		blockSize:      blockSize,
		bufferSize:     bufferSize,
	}, nil
}

// Transformation returns the transformation name.
func (s *Stream) Transformation() string { return s.transformation }

// BlockSize returns the cipher block size in bytes.
func (s *Stream) BlockSize() int { return s.blockSize }

// BufferSize returns the scratch-buffer size in bytes.
func (s *Stream) BufferSize() int { return s.bufferSize }

// BaseIV returns a copy of the stream's base IV.
func (s *Stream) BaseIV() []byte { return append([]byte(nil), s.baseIV...) }
