package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	keySize          = 32 // 256 bits
	saltSize         = 32 // 256 bits
)

// DeriveKey derives a 256-bit cipher key from a password and a per-object
// salt using PBKDF2 with 100,000 iterations.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != saltSize {
		return nil, fmt.Errorf("invalid salt size: expected %d bytes, got %d", saltSize, len(salt))
	}
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New), nil
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateIV generates a random base IV sized for the transformation.
func GenerateIV(transformation string) ([]byte, error) {
	t, err := NewTransform(transformation)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, t.IVSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// ZeroBytes overwrites a byte slice with zeros for secure memory cleanup.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
