// Package app wires the keychain, the migrator and the remote session into
// the unlock flow that produces the active SeedlessWallet.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/metrics"
	"github.com/better-wallet/seedless/internal/migrator"
	"github.com/better-wallet/seedless/internal/remote"
	"github.com/better-wallet/seedless/internal/securestore"
	"github.com/better-wallet/seedless/internal/wallet"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Keychain is the secure storage surface the unlock flow reads
type Keychain interface {
	migrator.Keychain
	LoadEncryptionKeyWithBiometry(ctx context.Context) ([]byte, error)
	LoadWalletSecret(ctx context.Context, walletID string, key []byte) ([]byte, error)

	IsPinCorrect(ctx context.Context, pin string, legacy bool) (bool, error)
	ChangePin(ctx context.Context, oldPin, newPin string) error
	EnableBiometry(ctx context.Context, pin string) error
	DisableBiometry(ctx context.Context) error
	ClearAll(ctx context.Context, walletIDs []string) error
}

// SessionFactory opens a remote session from the decrypted wallet secret
type SessionFactory func(ctx context.Context, secret *remote.SessionSecret) (remote.Session, error)

// UnlockService owns the active wallet between Unlock and Lock
type UnlockService struct {
	keychain    Keychain
	migrator    *migrator.Migrator
	walletID    string
	sessions    SessionFactory
	provisioner wallet.Provisioner
	metrics     *metrics.Metrics
	audit       *audit.Recorder

	// keyMu serializes keychain writes made outside the migrator
	keyMu sync.Mutex

	mu     sync.RWMutex
	active *wallet.SeedlessWallet
	sess   remote.Session
}

// NewUnlockService creates the unlock service for walletID
func NewUnlockService(
	keychain Keychain,
	walletID string,
	sessions SessionFactory,
	provisioner wallet.Provisioner,
	m *metrics.Metrics,
) *UnlockService {
	return &UnlockService{
		keychain:    keychain,
		migrator:    migrator.New(keychain, walletID, m),
		walletID:    walletID,
		sessions:    sessions,
		provisioner: provisioner,
		metrics:     m,
	}
}

// SetAuditRecorder makes the service record unlocks, migrations and
// keychain changes. Without one nothing is recorded.
func (s *UnlockService) SetAuditRecorder(r *audit.Recorder) {
	s.audit = r
}

// MigrationStatus reports the migration an unlock with access would run
func (s *UnlockService) MigrationStatus(ctx context.Context, access types.AccessType) (types.MigrationStatus, error) {
	if !access.IsValid() {
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid access type", string(access), http.StatusBadRequest)
	}
	return s.migrator.GetMigrationStatus(ctx, access)
}

// KeychainState reports which secret copies are present
func (s *UnlockService) KeychainState(ctx context.Context) (types.KeychainState, error) {
	return s.migrator.State(ctx)
}

// Unlock migrates the keychain if needed, opens the wallet secret with the
// requested factor and builds the wallet from the session's keys. Migration
// errors are returned unchanged.
func (s *UnlockService) Unlock(ctx context.Context, access types.AccessType, pin string) (*wallet.SeedlessWallet, error) {
	ctx = logger.WithWalletID(ctx, s.walletID)

	w, err := s.unlock(ctx, access, pin)
	s.audit.Record(ctx, audit.Event{
		Action:   types.AuditActionUnlock,
		Metadata: map[string]any{"access_type": access},
	}, err)
	return w, err
}

func (s *UnlockService) unlock(ctx context.Context, access types.AccessType, pin string) (*wallet.SeedlessWallet, error) {
	s.keyMu.Lock()
	status, err := s.migrator.MigrateIfNeeded(ctx, access, pin)
	s.keyMu.Unlock()
	if status != "" && status != types.MigrationNotNeeded {
		s.audit.Record(ctx, audit.Event{
			Action:   types.AuditActionMigrate,
			Metadata: map[string]any{"status": status, "access_type": access},
		}, err)
	}
	if err != nil {
		return nil, err
	}

	key, err := s.loadEncryptionKey(ctx, access, pin)
	if err != nil {
		return nil, err
	}
	raw, err := s.keychain.LoadWalletSecret(ctx, s.walletID, key)
	crypto.Zero(key)
	if err != nil {
		logger.Error(ctx, "failed to open wallet secret", "error", err)
		// An encryption key without a secret it opens is a migration that
		// never finished.
		if errors.Is(err, securestore.ErrNotFound) || errors.Is(err, securestore.ErrDecrypt) {
			return nil, apperrors.MigrationFailed("wallet secret missing for encryption key", err)
		}
		return nil, err
	}

	secret, err := remote.ParseSessionSecret(raw)
	crypto.Zero(raw)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions(ctx, secret)
	if err != nil {
		logger.Error(ctx, "failed to open remote session", "error", err)
		return nil, err
	}

	w, err := s.buildWallet(ctx, sess)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = w
	s.sess = sess
	s.mu.Unlock()

	logger.Info(ctx, "wallet unlocked", "access_type", access, "accounts", w.AccountCount())
	return w, nil
}

func (s *UnlockService) loadEncryptionKey(ctx context.Context, access types.AccessType, pin string) ([]byte, error) {
	if access == types.AccessTypeBIO {
		return s.keychain.LoadEncryptionKeyWithBiometry(ctx)
	}
	return s.keychain.LoadEncryptionKeyWithPin(ctx, pin)
}

func (s *UnlockService) buildWallet(ctx context.Context, sess remote.Session) (*wallet.SeedlessWallet, error) {
	keys, err := sess.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list session keys: %w", err)
	}
	pubKeys, err := remote.TransformKeyInfosToPubKeys(keys)
	if err != nil {
		return nil, err
	}
	return wallet.NewSeedlessWallet(sess, s.provisioner, pubKeys, s.metrics)
}

// Wallet returns the active wallet or WalletLocked
func (s *UnlockService) Wallet() (*wallet.SeedlessWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, apperrors.ErrWalletLocked
	}
	return s.active, nil
}

// Lock drops the active wallet and its session
func (s *UnlockService) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	s.sess = nil
}

// AddAccount provisions accountIndex and rebuilds the active wallet so the
// new account's keys are visible.
func (s *UnlockService) AddAccount(ctx context.Context, accountIndex int) (*wallet.SeedlessWallet, error) {
	w, err := s.provision(ctx, func(w *wallet.SeedlessWallet) error {
		return w.AddAccount(ctx, accountIndex)
	})
	s.audit.Record(ctx, audit.Event{
		Action:   types.AuditActionAddAccount,
		Metadata: map[string]any{"account_index": accountIndex},
	}, err)
	return w, err
}

// DeriveMissingKeys fills key gaps on the backend and rebuilds the active wallet
func (s *UnlockService) DeriveMissingKeys(ctx context.Context) (*wallet.SeedlessWallet, error) {
	w, err := s.provision(ctx, func(w *wallet.SeedlessWallet) error {
		return w.DeriveMissingKeys(ctx)
	})
	s.audit.Record(ctx, audit.Event{
		Action:   types.AuditActionAddAccount,
		Metadata: map[string]any{"derive_missing": true},
	}, err)
	return w, err
}

func (s *UnlockService) provision(ctx context.Context, op func(*wallet.SeedlessWallet) error) (*wallet.SeedlessWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, apperrors.ErrWalletLocked
	}
	if err := op(s.active); err != nil {
		return nil, err
	}

	w, err := s.buildWallet(ctx, s.sess)
	if err != nil {
		return nil, err
	}
	s.active = w
	return w, nil
}
