package crypto

import (
	"fmt"
	"io"
)

// EncryptingReader wraps src so that reads pass through the stream cipher,
// producing ciphertext. The keystream starts at block counter zero, which
// is what positioned decryption assumes when it maps absolute offsets to
// counters. Encryption and decryption are the same XOR for these modes, so
// the wrapper also serves to decrypt a full stream front to back.
func (s *Stream) EncryptingReader(src io.Reader) (io.Reader, error) {
	t, err := NewTransform(s.transformation)
	if err != nil {
		return nil, err
	}
	if err := t.Init(s.key, s.baseIV, 0); err != nil {
		return nil, &CipherError{Op: "init", Err: err}
	}
	return &xorReader{src: src, transform: t}, nil
}

type xorReader struct {
	src       io.Reader
	transform Transform
}

func (r *xorReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		consumed, terr := r.transform.Update(p[:n], p[:n])
		if terr != nil {
			return 0, &CipherError{Op: "update", Err: terr}
		}
		if consumed < n {
			return 0, &CipherError{Op: "update", Err: fmt.Errorf(
				"primitive consumed %d of %d bytes in sequential mode", consumed, n)}
		}
	}
	return n, err
}
