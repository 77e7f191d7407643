package crypto

import (
	"fmt"
	"io"
	"sync/atomic"
)

// PositionedReader decrypts arbitrary byte ranges of a stream encrypted
// with a seekable stream-cipher mode. It is safe for concurrent use: every
// call checks out its own cipher state and scratch buffers from internal
// pools, so overlapping calls never share mutable state. The stream's key
// and base IV are immutable and read concurrently by all calls.
//
// Decrypt is the core operation; ReadAt layers ciphertext fetching from the
// backing source on top of it and satisfies io.ReaderAt.
type PositionedReader struct {
	stream *Stream
	src    io.ReaderAt
	size   int64

	buffers *Pool[[]byte]
	ciphers *Pool[*cipherState]
	closed  atomic.Bool
}

// NewPositionedReader creates a reader over src, which holds size bytes of
// ciphertext encrypted under the stream's key and base IV starting at
// stream offset zero.
func NewPositionedReader(stream *Stream, src io.ReaderAt, size int64) *PositionedReader {
	bufferSize := stream.BufferSize()
	return &PositionedReader{
		stream: stream,
		src:    src,
		size:   size,
		buffers: NewPool(func() ([]byte, error) {
			return make([]byte, bufferSize), nil
		}),
		ciphers: NewPool(func() (*cipherState, error) {
			t, err := NewTransform(stream.Transformation())
			if err != nil {
				return nil, err
			}
			return &cipherState{transform: t}, nil
		}),
	}
}

// Size returns the stream length in bytes.
func (r *PositionedReader) Size() int64 { return r.size }

// Decrypt decrypts length ciphertext bytes held in buffer starting at
// offset, where the first of those bytes sits at absolute stream offset
// position. The plaintext replaces the ciphertext in place. It is
// thread-safe and leaves no per-call state behind: pooled resources are
// returned on every exit path.
func (r *PositionedReader) Decrypt(position int64, buffer []byte, offset, length int) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}
	if position < 0 || length < 0 || offset < 0 || offset+length > len(buffer) {
		return fmt.Errorf("%w: position=%d offset=%d length=%d buffer=%d",
			ErrInvalidRange, position, offset, length, len(buffer))
	}
	if length == 0 {
		return nil
	}

	inBuf, err := r.buffers.Get()
	if err != nil {
		return fmt.Errorf("failed to acquire input buffer: %w", err)
	}
	defer r.buffers.Put(inBuf)

	outBuf, err := r.buffers.Get()
	if err != nil {
		return fmt.Errorf("failed to acquire output buffer: %w", err)
	}
	defer r.buffers.Put(outBuf)

	state, err := r.ciphers.Get()
	if err != nil {
		return fmt.Errorf("failed to acquire cipher: %w", err)
	}
	defer r.ciphers.Put(state)

	padding, err := r.initCipher(state, position)
	if err != nil {
		return err
	}
	// Bytes [0, padding) of inBuf stand in for the ciphertext of the same
	// block that precedes the requested range. They are fed through the
	// cipher to keep the keystream aligned but never reach the caller.
	filled := padding

	n := 0
	for n < length {
		toDecrypt := length - n
		if room := len(inBuf) - filled; toDecrypt > room {
			toDecrypt = room
		}
		copy(inBuf[filled:filled+toDecrypt], buffer[offset+n:offset+n+toDecrypt])
		filled += toDecrypt

		if filled > padding {
			if err := r.decryptBuffer(state, inBuf[:filled], outBuf); err != nil {
				return err
			}
			// Plaintext and ciphertext share block alignment, so the
			// requested bytes start padding bytes into the output.
			copy(buffer[offset+n:offset+n+toDecrypt], outBuf[padding:padding+toDecrypt])
		}
		n += toDecrypt

		filled, padding = 0, 0
		if state.needsInit {
			// The primitive lost its keystream position; restart from the
			// next absolute offset as if it were a fresh call.
			padding, err = r.initCipher(state, position+int64(n))
			if err != nil {
				return err
			}
			filled = padding
		}
	}
	return nil
}

// ReadAt reads len(p) plaintext bytes starting at stream offset off. It
// fetches the corresponding ciphertext from the backing source and
// decrypts it in place, satisfying the io.ReaderAt contract.
func (r *PositionedReader) ReadAt(p []byte, off int64) (int, error) {
	if r.closed.Load() {
		return 0, ErrReaderClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: position=%d", ErrInvalidRange, off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	want := len(p)
	if max := r.size - off; int64(want) > max {
		want = int(max)
	}

	n, err := r.src.ReadAt(p[:want], off)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read ciphertext at %d: %w", off, err)
	}
	if n > 0 {
		if derr := r.Decrypt(off, p, 0, n); derr != nil {
			return 0, derr
		}
	}
	if n == want && off+int64(n) < r.size {
		return n, nil
	}
	return n, io.EOF
}

// Close releases all pooled resources and closes the backing source if it
// is a Closer. Closing an already-closed reader is a no-op.
func (r *PositionedReader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.buffers.Drain(func(buf []byte) {
		ZeroBytes(buf)
	})
	r.ciphers.Drain(nil)
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// PoolStats reports reuse counters for the scratch-buffer and cipher
// pools, in that order. Exposed for metrics and tests.
func (r *PositionedReader) PoolStats() (bufHits, bufMisses uint64, cipherHits, cipherMisses uint64) {
	bufHits, bufMisses, _ = r.buffers.Stats()
	cipherHits, cipherMisses, _ = r.ciphers.Stats()
	return
}

// initCipher derives the counter and intra-block padding for position and
// re-initializes the pooled cipher, clearing its reset flag.
func (r *PositionedReader) initCipher(state *cipherState, position int64) (int, error) {
	counter := BlockCounter(position, r.stream.blockSize)
	padding := BlockPadding(position, r.stream.blockSize)
	if err := state.transform.Init(r.stream.key, r.stream.baseIV, counter); err != nil {
		return 0, &CipherError{Op: "init", Err: err}
	}
	state.needsInit = false
	return padding, nil
}

// decryptBuffer runs the primitive over src, writing the same number of
// bytes into dst. If the primitive cannot hold state across the call it
// consumes only part of the input; the remainder is drained with Final and
// the state is flagged for re-initialization.
func (r *PositionedReader) decryptBuffer(state *cipherState, src, dst []byte) error {
	consumed, err := state.transform.Update(dst[:len(src)], src)
	if err != nil {
		return &CipherError{Op: "update", Err: err}
	}
	if consumed < len(src) {
		if err := state.transform.Final(dst[consumed:len(src)], src[consumed:]); err != nil {
			return &CipherError{Op: "final", Err: err}
		}
		state.needsInit = true
	}
	return nil
}
