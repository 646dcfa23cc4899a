package mocks

import (
	"context"
	"sync"

	"github.com/better-wallet/seedless/internal/devsigner"
	"github.com/better-wallet/seedless/pkg/types"
)

// TestMnemonic is the well-known BIP-39 test vector
const TestMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// MockSession is a remote session backed by real derived keys. It records
// calls and can be told to fail or to return a fixed signature.
type MockSession struct {
	mu sync.Mutex

	Signer *devsigner.Signer

	calls     []string
	failOn    map[string]error
	signature []byte
	keys      []types.KeyInfo
}

// NewMockSession creates a session over TestMnemonic.
func NewMockSession(isTestnet bool) *MockSession {
	signer, err := devsigner.New(TestMnemonic, isTestnet)
	if err != nil {
		panic(err)
	}
	return &MockSession{Signer: signer, failOn: make(map[string]error)}
}

// FailOn makes the named method return err.
func (m *MockSession) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[method] = err
}

// ReturnSignature makes SignBlob and SignBtc return sig as is.
func (m *MockSession) ReturnSignature(sig []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signature = sig
}

// OverrideKeys makes Keys return keys instead of the derived ones.
func (m *MockSession) OverrideKeys(keys []types.KeyInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = keys
}

// Calls returns the recorded method names.
func (m *MockSession) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how often method was called.
func (m *MockSession) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockSession) record(method string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	return m.signature, m.failOn[method]
}

// Keys lists the session's keys.
func (m *MockSession) Keys(ctx context.Context) ([]types.KeyInfo, error) {
	if _, err := m.record("Keys"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	override := m.keys
	m.mu.Unlock()
	if override != nil {
		return override, nil
	}
	return m.Signer.Keys()
}

// ProveIdentity returns a proof from the dev signer.
func (m *MockSession) ProveIdentity(ctx context.Context) (*types.IdentityProof, error) {
	if _, err := m.record("ProveIdentity"); err != nil {
		return nil, err
	}
	return m.Signer.ProveIdentity(), nil
}

// SignBlob signs with the dev signer.
func (m *MockSession) SignBlob(ctx context.Context, keyID, digestB64 string) ([]byte, error) {
	sig, err := m.record("SignBlob")
	if err != nil {
		return nil, err
	}
	if sig != nil {
		return append([]byte(nil), sig...), nil
	}
	return m.Signer.SignBlob(keyID, digestB64)
}

// SignBtc signs a segwit input with the dev signer.
func (m *MockSession) SignBtc(ctx context.Context, address string, req *types.BtcSignRequest) ([]byte, error) {
	sig, err := m.record("SignBtc")
	if err != nil {
		return nil, err
	}
	if sig != nil {
		return append([]byte(nil), sig...), nil
	}
	return m.Signer.SignBtc(address, req)
}
