// Package mocks provides mock implementations for testing.
package mocks

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/better-wallet/seedless/internal/securestore"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// MockKeychain is an in-memory keychain that records every call by name.
// PIN factors remember the PIN they were stored with and reject others.
type MockKeychain struct {
	mu sync.Mutex

	items      map[types.Factor][]byte
	pins       map[types.Factor]string
	secrets    map[string][]byte
	secretKeys map[string][]byte
	access     types.AccessType

	calls      []string
	failOn     map[string]error
	bioRejects bool
}

// NewMockKeychain creates an empty mock keychain.
func NewMockKeychain() *MockKeychain {
	return &MockKeychain{
		items:      make(map[types.Factor][]byte),
		pins:       make(map[types.Factor]string),
		secrets:    make(map[string][]byte),
		secretKeys: make(map[string][]byte),
		failOn:     make(map[string]error),
	}
}

// SeedLegacyPin stores a legacy PIN wallet without recording a call.
func (m *MockKeychain) SeedLegacyPin(mnemonic []byte, pin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[types.FactorLegacyPin] = clone(mnemonic)
	m.pins[types.FactorLegacyPin] = pin
}

// SeedLegacyBiometric stores a legacy biometric wallet without recording a call.
func (m *MockKeychain) SeedLegacyBiometric(mnemonic []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[types.FactorLegacyBiometric] = clone(mnemonic)
}

// SeedFactor stores raw data under a factor without recording a call.
func (m *MockKeychain) SeedFactor(f types.Factor, data []byte, pin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[f] = clone(data)
	if pin != "" {
		m.pins[f] = pin
	}
}

// SetAccess sets the access preference without recording a call.
func (m *MockKeychain) SetAccess(a types.AccessType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = a
}

// FailOn makes the named method return err.
func (m *MockKeychain) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[method] = err
}

// RejectBiometrics makes every biometric load fail.
func (m *MockKeychain) RejectBiometrics(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bioRejects = reject
}

// Calls returns the method names called so far, in order.
func (m *MockKeychain) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// ResetCalls clears the call log.
func (m *MockKeychain) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Item returns the stored data for a factor.
func (m *MockKeychain) Item(f types.Factor) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[f]
	return clone(v), ok
}

// WalletSecret returns the stored secret and the key it was written with.
func (m *MockKeychain) WalletSecret(walletID string) (secret, key []byte, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[walletID]
	return clone(s), clone(m.secretKeys[walletID]), ok
}

func (m *MockKeychain) record(method string) error {
	m.calls = append(m.calls, method)
	return m.failOn[method]
}

func (m *MockKeychain) loadPin(f types.Factor, pin string) ([]byte, error) {
	if pin == "" {
		return nil, apperrors.BadPin("PIN is required")
	}
	v, ok := m.items[f]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", f, securestore.ErrNotFound)
	}
	if m.pins[f] != pin {
		return nil, apperrors.BadPin(fmt.Sprintf("cannot open %s", f))
	}
	return clone(v), nil
}

func (m *MockKeychain) loadBio(f types.Factor) ([]byte, error) {
	if m.bioRejects {
		return nil, apperrors.BiometricAuth(securestore.ErrBiometricRejected)
	}
	v, ok := m.items[f]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", f, securestore.ErrNotFound)
	}
	return clone(v), nil
}

// HasKey reports whether the factor holds data.
func (m *MockKeychain) HasKey(ctx context.Context, f types.Factor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("HasKey"); err != nil {
		return false, err
	}
	_, ok := m.items[f]
	return ok, nil
}

// AccessType returns the access preference.
func (m *MockKeychain) AccessType(ctx context.Context) (types.AccessType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["AccessType"]; err != nil {
		return "", err
	}
	return m.access, nil
}

// SetAccessType records the access preference.
func (m *MockKeychain) SetAccessType(ctx context.Context, access types.AccessType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetAccessType"); err != nil {
		return err
	}
	m.access = access
	return nil
}

// Access returns the access preference.
func (m *MockKeychain) Access() types.AccessType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

// Erase removes the factor's data.
func (m *MockKeychain) Erase(ctx context.Context, f types.Factor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Erase"); err != nil {
		return err
	}
	delete(m.items, f)
	delete(m.pins, f)
	return nil
}

// LoadLegacyWalletWithPin returns the legacy PIN wallet.
func (m *MockKeychain) LoadLegacyWalletWithPin(ctx context.Context, pin string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LoadLegacyWalletWithPin"); err != nil {
		return nil, err
	}
	return m.loadPin(types.FactorLegacyPin, pin)
}

// LoadLegacyWalletWithBiometry returns the legacy biometric wallet.
func (m *MockKeychain) LoadLegacyWalletWithBiometry(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LoadLegacyWalletWithBiometry"); err != nil {
		return nil, err
	}
	return m.loadBio(types.FactorLegacyBiometric)
}

// GenerateEncryptionKey returns 32 random bytes.
func (m *MockKeychain) GenerateEncryptionKey() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GenerateEncryptionKey"); err != nil {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// StoreEncryptionKeyWithPin stores key under the new PIN factor.
func (m *MockKeychain) StoreEncryptionKeyWithPin(ctx context.Context, key []byte, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("StoreEncryptionKeyWithPin"); err != nil {
		return err
	}
	m.items[types.FactorNewPin] = clone(key)
	m.pins[types.FactorNewPin] = pin
	m.access = types.AccessTypePIN
	return nil
}

// StoreEncryptionKeyWithBiometry stores key under the new biometric factor.
func (m *MockKeychain) StoreEncryptionKeyWithBiometry(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("StoreEncryptionKeyWithBiometry"); err != nil {
		return err
	}
	m.items[types.FactorNewBiometric] = clone(key)
	m.access = types.AccessTypeBIO
	return nil
}

// LoadEncryptionKeyWithPin returns the new PIN factor key.
func (m *MockKeychain) LoadEncryptionKeyWithPin(ctx context.Context, pin string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LoadEncryptionKeyWithPin"); err != nil {
		return nil, err
	}
	return m.loadPin(types.FactorNewPin, pin)
}

// LoadEncryptionKeyWithBiometry returns the new biometric factor key.
func (m *MockKeychain) LoadEncryptionKeyWithBiometry(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LoadEncryptionKeyWithBiometry"); err != nil {
		return nil, err
	}
	return m.loadBio(types.FactorNewBiometric)
}

// StoreWalletSecret keeps the secret with the key it was written under.
func (m *MockKeychain) StoreWalletSecret(ctx context.Context, walletID string, key, secret []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("StoreWalletSecret"); err != nil {
		return err
	}
	m.secrets[walletID] = clone(secret)
	m.secretKeys[walletID] = clone(key)
	return nil
}

// LoadWalletSecret returns the secret when key matches the one it was stored with.
func (m *MockKeychain) LoadWalletSecret(ctx context.Context, walletID string, key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LoadWalletSecret"); err != nil {
		return nil, err
	}
	s, ok := m.secrets[walletID]
	if !ok {
		return nil, securestore.ErrNotFound
	}
	if !bytes.Equal(m.secretKeys[walletID], key) {
		return nil, securestore.ErrDecrypt
	}
	return clone(s), nil
}

// ClearLegacyWalletData removes both legacy factors.
func (m *MockKeychain) ClearLegacyWalletData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ClearLegacyWalletData"); err != nil {
		return err
	}
	delete(m.items, types.FactorLegacyPin)
	delete(m.items, types.FactorLegacyBiometric)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
