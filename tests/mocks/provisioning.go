package mocks

import (
	"context"
	"sync"

	"github.com/better-wallet/seedless/internal/devsigner"
	"github.com/better-wallet/seedless/internal/provisioning"
)

// MockProvisioning records provisioning requests. When Signer is set the
// requested accounts are derived on it, like the real backend would.
type MockProvisioning struct {
	mu sync.Mutex

	Signer *devsigner.Signer
	Err    error

	AddAccountRequests []provisioning.AddAccountRequest
	DeriveRequests     []provisioning.DeriveMissingKeysRequest
}

// AddAccount records req and derives the account.
func (m *MockProvisioning) AddAccount(ctx context.Context, req provisioning.AddAccountRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddAccountRequests = append(m.AddAccountRequests, req)
	if m.Err != nil {
		return m.Err
	}
	if m.Signer != nil {
		return m.Signer.DeriveAccount(uint32(req.AccountIndex))
	}
	return nil
}

// DeriveMissingKeys records req and fills gaps.
func (m *MockProvisioning) DeriveMissingKeys(ctx context.Context, req provisioning.DeriveMissingKeysRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeriveRequests = append(m.DeriveRequests, req)
	if m.Err != nil {
		return m.Err
	}
	if m.Signer != nil {
		return m.Signer.DeriveMissing()
	}
	return nil
}
