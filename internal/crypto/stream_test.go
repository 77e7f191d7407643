package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewStreamValidation(t *testing.T) {
	tests := []struct {
		name           string
		transformation string
		key            []byte
		iv             []byte
		wantErr        bool
	}{
		{"aes valid", TransformationAESCTR, testKey16(), make([]byte, 16), false},
		{"aes bad iv", TransformationAESCTR, testKey16(), make([]byte, 12), true},
		{"aes bad key", TransformationAESCTR, make([]byte, 15), make([]byte, 16), true},
		{"chacha valid", TransformationChaCha20, testKey32(), make([]byte, 12), false},
		{"chacha bad nonce", TransformationChaCha20, testKey32(), make([]byte, 16), true},
		{"chacha bad key", TransformationChaCha20, testKey16(), make([]byte, 12), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStream(tt.transformation, tt.key, tt.iv, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewStream() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewStream("XTEA", testKey16(), make([]byte, 16), 0); !errors.Is(err, ErrUnknownTransformation) {
		t.Errorf("unknown transformation error = %v", err)
	}
}

func TestNewStreamBufferSizing(t *testing.T) {
	tests := []struct {
		name       string
		bufferSize int
		want       int
	}{
		{"default", 0, DefaultBufferSize},
		{"negative selects default", -1, DefaultBufferSize},
		{"below minimum clamps", 100, minBufferSize},
		{"rounds down to block multiple", 1000, 992},
		{"already aligned", 4096, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStream(TransformationAESCTR, testKey16(), make([]byte, 16), tt.bufferSize)
			if err != nil {
				t.Fatalf("NewStream error: %v", err)
			}
			if s.BufferSize() != tt.want {
				t.Errorf("BufferSize() = %d, want %d", s.BufferSize(), tt.want)
			}
		})
	}
}

func TestStreamCopiesKeyMaterial(t *testing.T) {
	key := testKey16()
	iv := sequentialBytes(16)
	s, err := NewStream(TransformationAESCTR, key, iv, 0)
	if err != nil {
		t.Fatalf("NewStream error: %v", err)
	}

	key[0] ^= 0xff
	iv[0] ^= 0xff
	if bytes.Equal(s.key, key) {
		t.Error("stream shares the caller's key slice")
	}
	if s.BaseIV()[0] == iv[0] {
		t.Error("stream shares the caller's IV slice")
	}
}
