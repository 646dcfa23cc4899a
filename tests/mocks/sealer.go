package mocks

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

// MockSealer is a Sealer doing real AES-GCM under a random key.
type MockSealer struct {
	mu            sync.RWMutex
	masterKey     []byte
	encryptCalls  int
	decryptCalls  int
	shouldFail    bool
	failOnNthCall int
	callCount     int
}

// NewMockSealer creates a new mock sealer.
func NewMockSealer() *MockSealer {
	key := make([]byte, 32)
	rand.Read(key)
	return &MockSealer{masterKey: key}
}

func (m *MockSealer) fail() bool {
	m.callCount++
	return m.shouldFail || (m.failOnNthCall > 0 && m.callCount == m.failOnNthCall)
}

// Encrypt encrypts data using AES-GCM.
func (m *MockSealer) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.encryptCalls++
	if m.fail() {
		return nil, fmt.Errorf("mock sealer encrypt failure")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts data using AES-GCM.
func (m *MockSealer) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decryptCalls++
	if m.fail() {
		return nil, fmt.Errorf("mock sealer decrypt failure")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func (m *MockSealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Provider returns the provider name.
func (m *MockSealer) Provider() string {
	return "mock"
}

// SetShouldFail configures the mock to fail on all calls.
func (m *MockSealer) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// SetFailOnNthCall configures the mock to fail on the nth call.
func (m *MockSealer) SetFailOnNthCall(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOnNthCall = n
	m.callCount = 0
}

// GetEncryptCalls returns the number of encrypt calls.
func (m *MockSealer) GetEncryptCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.encryptCalls
}

// GetDecryptCalls returns the number of decrypt calls.
func (m *MockSealer) GetDecryptCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decryptCalls
}
