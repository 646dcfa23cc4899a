package app

import (
	"context"
	"fmt"

	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/config"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/securestore"
	"github.com/better-wallet/seedless/internal/storage"
)

// memoryAuditEvents caps the audit trail kept by the memory store
const memoryAuditEvents = 1000

// Stores is the persistence one daemon opens: the keychain and the audit
// trail share a backend.
type Stores struct {
	Keychain *securestore.Keychain
	Audit    audit.Store

	close func()
}

// Close releases the database pool, if any
func (s *Stores) Close() {
	s.close()
}

// OpenStores builds the keychain over the configured backend and sealer,
// plus the audit store next to it.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var (
		backend    securestore.Backend
		auditStore audit.Store
		closeFn    = func() {}
	)

	switch cfg.StoreBackend {
	case "memory":
		logger.Warn(ctx, "using in-memory secure store; secrets are lost on exit")
		backend = securestore.NewMemoryBackend()
		auditStore = audit.NewMemoryStore(memoryAuditEvents)
	case "postgres":
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		backend = storage.NewSecureItemRepository(store, cfg.WalletID)
		auditStore = storage.NewAuditRepository(store)
		closeFn = store.Close
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}

	sealer, err := securestore.NewSealer(ctx, cfg.SealerConfig())
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize sealer: %w", err)
	}

	logger.Info(ctx, "secure store ready",
		"backend", cfg.StoreBackend,
		"sealer", sealer.Provider(),
	)
	return &Stores{
		Keychain: securestore.NewKeychain(backend, sealer, nil, securestore.PinCipher{N: cfg.PinScryptN}),
		Audit:    auditStore,
		close:    closeFn,
	}, nil
}

// OpenKeychain opens the stores and returns only the keychain, for tools
// that write legacy state without auditing.
func OpenKeychain(ctx context.Context, cfg *config.Config) (*securestore.Keychain, func(), error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return stores.Keychain, stores.Close, nil
}
