package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"math"
	"testing"
)

func TestNewTransformUnknown(t *testing.T) {
	if _, err := NewTransform("ROT13"); !errors.Is(err, ErrUnknownTransformation) {
		t.Errorf("NewTransform(ROT13) error = %v, want ErrUnknownTransformation", err)
	}
}

func TestBlockSizeOf(t *testing.T) {
	tests := []struct {
		transformation string
		want           int
	}{
		{TransformationAESCTR, 16},
		{TransformationChaCha20, 64},
	}
	for _, tt := range tests {
		got, err := BlockSizeOf(tt.transformation)
		if err != nil {
			t.Fatalf("BlockSizeOf(%s) error: %v", tt.transformation, err)
		}
		if got != tt.want {
			t.Errorf("BlockSizeOf(%s) = %d, want %d", tt.transformation, got, tt.want)
		}
	}
}

func TestAESCTRRejectsBadIVSize(t *testing.T) {
	tr, _ := NewTransform(TransformationAESCTR)
	err := tr.Init(make([]byte, 16), make([]byte, 12), 0)
	if err == nil {
		t.Fatal("Init with 12 byte IV should fail for AES-CTR")
	}
}

func TestAESCTRMatchesStdlibAtCounter(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9}
	src := make([]byte, 48)
	for i := range src {
		src[i] = byte(i * 3)
	}

	tr, _ := NewTransform(TransformationAESCTR)
	if err := tr.Init(key, iv, 2); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	got := make([]byte, len(src))
	if _, err := tr.Update(got, src); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	block, _ := aes.NewCipher(key)
	advanced := make([]byte, 16)
	CalculateIV(iv, 2, advanced)
	want := make([]byte, len(src))
	cipher.NewCTR(block, advanced).XORKeyStream(want, src)

	if !bytes.Equal(got, want) {
		t.Error("AES-CTR transform output diverges from stdlib CTR")
	}
}

func TestAESCTRReinitSameKey(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := make([]byte, 16)
	src := []byte("the same sixteen")

	tr, _ := NewTransform(TransformationAESCTR)
	first := make([]byte, len(src))
	if err := tr.Init(key, iv, 0); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	tr.Update(first, src)

	// Re-initializing at the same counter must reproduce the keystream.
	second := make([]byte, len(src))
	if err := tr.Init(key, iv, 0); err != nil {
		t.Fatalf("re-Init error: %v", err)
	}
	tr.Update(second, src)

	if !bytes.Equal(first, second) {
		t.Error("re-Init at the same counter produced a different keystream")
	}
}

func TestChaCha20RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	nonce := make([]byte, 12)
	src := []byte("chacha positioned payload spanning a block")

	enc, _ := NewTransform(TransformationChaCha20)
	if err := enc.Init(key, nonce, 0); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	ct := make([]byte, len(src))
	enc.Update(ct, src)

	dec, _ := NewTransform(TransformationChaCha20)
	if err := dec.Init(key, nonce, 0); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	pt := make([]byte, len(ct))
	dec.Update(pt, ct)

	if !bytes.Equal(pt, src) {
		t.Errorf("round trip = %q, want %q", pt, src)
	}
}

func TestChaCha20SeeksViaCounter(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 12)
	nonce[11] = 1
	src := make([]byte, 192)
	for i := range src {
		src[i] = byte(i)
	}

	full, _ := NewTransform(TransformationChaCha20)
	full.Init(key, nonce, 0)
	ct := make([]byte, len(src))
	full.Update(ct, src)

	// Decrypt the third 64 byte block by seeking to counter 2.
	seek, _ := NewTransform(TransformationChaCha20)
	if err := seek.Init(key, nonce, 2); err != nil {
		t.Fatalf("Init at counter error: %v", err)
	}
	got := make([]byte, 64)
	seek.Update(got, ct[128:])

	if !bytes.Equal(got, src[128:]) {
		t.Error("seeking via SetCounter did not line up with block 2")
	}
}

func TestChaCha20RejectsOversizedCounter(t *testing.T) {
	tr, _ := NewTransform(TransformationChaCha20)
	err := tr.Init(make([]byte, 32), make([]byte, 12), math.MaxUint32+1)
	if err == nil {
		t.Fatal("Init should reject counters beyond the 32 bit ChaCha20 space")
	}
}

func TestUpdateBeforeInit(t *testing.T) {
	for _, transformation := range []string{TransformationAESCTR, TransformationChaCha20} {
		tr, _ := NewTransform(transformation)
		if _, err := tr.Update(make([]byte, 4), make([]byte, 4)); err == nil {
			t.Errorf("%s: Update before Init should fail", transformation)
		}
	}
}
