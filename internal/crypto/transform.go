package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20"
)

const (
	// TransformationAESCTR is AES in counter mode. Accepts 16, 24 or
	// 32 byte keys and a 16 byte IV.
	TransformationAESCTR = "AES-CTR"
	// TransformationChaCha20 is the unauthenticated ChaCha20 stream
	// cipher. Requires a 32 byte key and a 12 byte nonce.
	TransformationChaCha20 = "ChaCha20"
)

// Transform is the seekable stream-cipher primitive the positioned engine
// drives. Init positions the keystream at the given block counter; Update
// XORs src into dst and reports how many input bytes were consumed. When
// Update consumes less than len(src) the primitive could not keep internal
// state across the call; the caller must drain the remainder with Final and
// re-Init before processing further data.
type Transform interface {
	Init(key, iv []byte, counter uint64) error
	Update(dst, src []byte) (int, error)
	Final(dst, src []byte) error
	BlockSize() int
	IVSize() int
}

// NewTransform constructs a fresh primitive instance for the named
// transformation. Used both at stream construction and for pool growth.
func NewTransform(transformation string) (Transform, error) {
	switch transformation {
	case TransformationAESCTR:
		return &aesCTRTransform{}, nil
	case TransformationChaCha20:
		return &chacha20Transform{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransformation, transformation)
	}
}

// BlockSizeOf returns the block size of the named transformation.
func BlockSizeOf(transformation string) (int, error) {
	t, err := NewTransform(transformation)
	if err != nil {
		return 0, err
	}
	return t.BlockSize(), nil
}

// aesCTRTransform drives the stdlib CTR stream. The key schedule is cached
// across Init calls so a pooled instance re-initialized with the same key
// only pays for the IV derivation.
type aesCTRTransform struct {
	key    []byte
	block  cipher.Block
	stream cipher.Stream
	iv     [aes.BlockSize]byte
}

func (t *aesCTRTransform) BlockSize() int { return aes.BlockSize }
func (t *aesCTRTransform) IVSize() int    { return aes.BlockSize }

func (t *aesCTRTransform) Init(key, iv []byte, counter uint64) error {
	if len(iv) != aes.BlockSize {
		return fmt.Errorf("invalid IV size: expected %d bytes, got %d", aes.BlockSize, len(iv))
	}
	if t.block == nil || !bytes.Equal(t.key, key) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return fmt.Errorf("failed to create AES cipher: %w", err)
		}
		t.block = block
		t.key = append(t.key[:0], key...)
	}
	CalculateIV(iv, counter, t.iv[:])
	t.stream = cipher.NewCTR(t.block, t.iv[:])
	return nil
}

func (t *aesCTRTransform) Update(dst, src []byte) (int, error) {
	if t.stream == nil {
		return 0, fmt.Errorf("transform not initialized")
	}
	t.stream.XORKeyStream(dst[:len(src)], src)
	return len(src), nil
}

func (t *aesCTRTransform) Final(dst, src []byte) error {
	if t.stream == nil {
		return fmt.Errorf("transform not initialized")
	}
	t.stream.XORKeyStream(dst[:len(src)], src)
	t.stream = nil
	return nil
}

// chacha20Transform keeps the counter outside the nonce, so Init seeks via
// SetCounter instead of deriving a per-block IV.
type chacha20Transform struct {
	stream *chacha20.Cipher
}

func (t *chacha20Transform) BlockSize() int { return 64 }
func (t *chacha20Transform) IVSize() int    { return chacha20.NonceSize }

func (t *chacha20Transform) Init(key, iv []byte, counter uint64) error {
	if counter > math.MaxUint32 {
		return fmt.Errorf("block counter %d exceeds ChaCha20 counter space", counter)
	}
	stream, err := chacha20.NewUnauthenticatedCipher(key, iv)
	if err != nil {
		return fmt.Errorf("failed to create ChaCha20 cipher: %w", err)
	}
	stream.SetCounter(uint32(counter))
	t.stream = stream
	return nil
}

func (t *chacha20Transform) Update(dst, src []byte) (int, error) {
	if t.stream == nil {
		return 0, fmt.Errorf("transform not initialized")
	}
	t.stream.XORKeyStream(dst[:len(src)], src)
	return len(src), nil
}

func (t *chacha20Transform) Final(dst, src []byte) error {
	if t.stream == nil {
		return fmt.Errorf("transform not initialized")
	}
	t.stream.XORKeyStream(dst[:len(src)], src)
	t.stream = nil
	return nil
}
