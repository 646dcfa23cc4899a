// Package securestore is the local secure storage capability: raw persistence,
// PIN and biometric factor encryption, and the keychain built on top of them.
package securestore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no item is stored under a service name
var ErrNotFound = errors.New("secure item not found")

// Backend persists opaque byte strings under service names.
// Values handed to a Backend are already encrypted.
type Backend interface {
	// Get returns ErrNotFound when the service has no item
	Get(ctx context.Context, service string) ([]byte, error)

	Put(ctx context.Context, service string, value []byte) error

	// Delete does not fail when the service has no item
	Delete(ctx context.Context, service string) error
}

// MemoryBackend keeps items in process memory
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

// Get returns a copy of the stored item
func (b *MemoryBackend) Get(ctx context.Context, service string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.items[service]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value
func (b *MemoryBackend) Put(ctx context.Context, service string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[service] = append([]byte(nil), value...)
	return nil
}

// Delete removes the item if present
func (b *MemoryBackend) Delete(ctx context.Context, service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.items, service)
	return nil
}

// Services lists the stored service names
func (b *MemoryBackend) Services() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.items))
	for k := range b.items {
		out = append(out, k)
	}
	return out
}

var _ Backend = (*MemoryBackend)(nil)
