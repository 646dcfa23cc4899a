package securestore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	pinBlobVersion = 1
	pinSaltLen     = 16
	pinKeyLen      = 32

	// DefaultScryptN is the scrypt cost used for PIN-derived keys
	DefaultScryptN = 1 << 15
)

// PinCipher encrypts items under a key derived from the user's PIN.
// Blob layout: version(1) || salt(16) || nonce(12) || ciphertext.
type PinCipher struct {
	N int
}

func (c PinCipher) deriveKey(pin string, salt []byte) ([]byte, error) {
	n := c.N
	if n == 0 {
		n = DefaultScryptN
	}
	key, err := scrypt.Key([]byte(pin), salt, n, 8, 1, pinKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive PIN key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with a fresh salt
func (c PinCipher) Seal(pin string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, pinSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := c.deriveKey(pin, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := sealAESGCM(key, plaintext)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, 1+pinSaltLen+len(sealed))
	blob = append(blob, pinBlobVersion)
	blob = append(blob, salt...)
	return append(blob, sealed...), nil
}

// Open decrypts a blob. A wrong PIN yields ErrDecrypt.
func (c PinCipher) Open(pin string, blob []byte) ([]byte, error) {
	if len(blob) < 1+pinSaltLen || blob[0] != pinBlobVersion {
		return nil, fmt.Errorf("malformed PIN blob: %w", ErrDecrypt)
	}

	key, err := c.deriveKey(pin, blob[1:1+pinSaltLen])
	if err != nil {
		return nil, err
	}
	return openAESGCM(key, blob[1+pinSaltLen:])
}
