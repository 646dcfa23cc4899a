// Package migrator moves the wallet secret from the legacy single-factor
// keychain scheme to the PIN plus biometric scheme, exactly once.
package migrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/metrics"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Keychain is the secure storage surface the migrator drives
type Keychain interface {
	HasKey(ctx context.Context, f types.Factor) (bool, error)
	AccessType(ctx context.Context) (types.AccessType, error)
	SetAccessType(ctx context.Context, access types.AccessType) error
	Erase(ctx context.Context, f types.Factor) error

	LoadLegacyWalletWithPin(ctx context.Context, pin string) ([]byte, error)
	LoadLegacyWalletWithBiometry(ctx context.Context) ([]byte, error)

	GenerateEncryptionKey() ([]byte, error)
	StoreEncryptionKeyWithPin(ctx context.Context, key []byte, pin string) error
	StoreEncryptionKeyWithBiometry(ctx context.Context, key []byte) error
	LoadEncryptionKeyWithPin(ctx context.Context, pin string) ([]byte, error)

	StoreWalletSecret(ctx context.Context, walletID string, key, secret []byte) error
	ClearLegacyWalletData(ctx context.Context) error
}

// Migrator runs keychain migrations for one wallet. Calls to MigrateIfNeeded
// are serialized.
type Migrator struct {
	keychain Keychain
	walletID string
	metrics  *metrics.Metrics

	mu sync.Mutex
}

// New creates a migrator for walletID
func New(keychain Keychain, walletID string, m *metrics.Metrics) *Migrator {
	return &Migrator{
		keychain: keychain,
		walletID: walletID,
		metrics:  m,
	}
}

// GetMigrationStatus decides which transition an unlock with access needs.
// It only checks for key existence and never writes.
func (m *Migrator) GetMigrationStatus(ctx context.Context, access types.AccessType) (types.MigrationStatus, error) {
	hasPin, err := m.keychain.HasKey(ctx, types.FactorNewPin)
	if err != nil {
		return "", err
	}
	if hasPin {
		return types.MigrationNotNeeded, nil
	}

	hasBio, err := m.keychain.HasKey(ctx, types.FactorNewBiometric)
	if err != nil {
		return "", err
	}
	if hasBio {
		if access == types.AccessTypeBIO {
			return types.MigrationNotNeeded, nil
		}
		return types.MigrationCompletePartial, nil
	}

	if access == types.AccessTypePIN {
		return types.MigrationRunPin, nil
	}
	return types.MigrationRunBiometric, nil
}

// State classifies which secret copies are present
func (m *Migrator) State(ctx context.Context) (types.KeychainState, error) {
	present := make(map[types.Factor]bool, 4)
	for _, f := range types.AllFactors() {
		ok, err := m.keychain.HasKey(ctx, f)
		if err != nil {
			return "", err
		}
		present[f] = ok
	}

	newPin, newBio := present[types.FactorNewPin], present[types.FactorNewBiometric]
	switch {
	case newPin && newBio:
		return types.KeychainNewBoth, nil
	case newPin:
		return types.KeychainNewPinOnly, nil
	case newBio:
		return types.KeychainNewBiometricOnly, nil
	case present[types.FactorLegacyPin] || present[types.FactorLegacyBiometric]:
		return types.KeychainLegacyOnly, nil
	default:
		return types.KeychainInconsistent, nil
	}
}

// MigrateIfNeeded must succeed before a wallet is built for this unlock.
// It returns the status that was acted on. BadPin and BiometricAuth errors
// are user-correctable; every other failure is a MigrationFailed error.
func (m *Migrator) MigrateIfNeeded(ctx context.Context, access types.AccessType, pin string) (types.MigrationStatus, error) {
	if !access.IsValid() {
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid access type", string(access), http.StatusBadRequest)
	}
	if access == types.AccessTypePIN && pin == "" {
		return "", apperrors.BadPin("PIN is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx = logger.WithWalletID(ctx, m.walletID)

	status, err := m.GetMigrationStatus(ctx, access)
	if err != nil {
		logger.Error(ctx, "failed to determine migration status", "error", err)
		return "", apperrors.MigrationFailed("status check", err)
	}
	if status == types.MigrationNotNeeded {
		return status, nil
	}

	logger.Info(ctx, "running keychain migration", "status", status, "access_type", access)

	switch {
	case status == types.MigrationRunPin && access == types.AccessTypePIN:
		err = m.runPinMigration(ctx, pin)
	case status == types.MigrationRunBiometric && access == types.AccessTypeBIO:
		err = m.runBiometricMigration(ctx)
	case status == types.MigrationCompletePartial && access == types.AccessTypePIN:
		err = m.completePartialMigration(ctx, pin)
	default:
		err = apperrors.MigrationFailed(fmt.Sprintf("unexpected status %s for %s", status, access), nil)
		logger.Error(ctx, "keychain migration failed", "status", status, "access_type", access)
	}

	m.metrics.ObserveMigration(string(status), err)
	if err != nil {
		return status, err
	}

	logger.Info(ctx, "keychain migration completed", "status", status)
	return status, nil
}

// classify keeps user-correctable errors and turns everything else into
// a MigrationFailed error.
func classify(ctx context.Context, procedure, logMsg string, err error) error {
	logger.Error(ctx, logMsg, "procedure", procedure, "error", err)

	if errors.Is(err, apperrors.ErrBadPin) || errors.Is(err, apperrors.ErrBiometricAuth) {
		return err
	}
	return apperrors.MigrationFailed(procedure, err)
}

func (m *Migrator) runPinMigration(ctx context.Context, pin string) error {
	if err := m.pinMigration(ctx, pin); err != nil {
		return classify(ctx, string(types.MigrationRunPin), "PIN-based keychain migration failed", err)
	}
	return nil
}

func (m *Migrator) pinMigration(ctx context.Context, pin string) (err error) {
	// Verifies the PIN; nothing is written before this succeeds.
	mnemonic, err := m.keychain.LoadLegacyWalletWithPin(ctx, pin)
	if err != nil {
		return err
	}
	defer crypto.Zero(mnemonic)

	preferred, err := m.keychain.AccessType(ctx)
	if err != nil {
		return err
	}

	key, err := m.keychain.GenerateEncryptionKey()
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	rb := m.newRollback(preferred)
	defer func() {
		if err != nil {
			err = rb.run(ctx, err)
		}
	}()

	rb.wrote(types.FactorNewPin)
	if err := m.keychain.StoreEncryptionKeyWithPin(ctx, key, pin); err != nil {
		return err
	}
	if preferred == types.AccessTypeBIO {
		rb.wrote(types.FactorNewBiometric)
		if err := m.keychain.StoreEncryptionKeyWithBiometry(ctx, key); err != nil {
			return err
		}
	}

	confirmed, err := m.keychain.LoadEncryptionKeyWithPin(ctx, pin)
	if err != nil {
		return err
	}
	defer crypto.Zero(confirmed)
	if !bytes.Equal(confirmed, key) {
		return fmt.Errorf("stored encryption key does not match generated key")
	}

	if err := m.keychain.StoreWalletSecret(ctx, m.walletID, confirmed, mnemonic); err != nil {
		return err
	}
	rb.commit()
	return m.keychain.ClearLegacyWalletData(ctx)
}

func (m *Migrator) runBiometricMigration(ctx context.Context) error {
	if err := m.biometricMigration(ctx); err != nil {
		return classify(ctx, string(types.MigrationRunBiometric), "Biometric-based keychain migration failed", err)
	}
	return nil
}

// biometricMigration keeps the legacy copy: a PIN completion may still need it.
func (m *Migrator) biometricMigration(ctx context.Context) (err error) {
	mnemonic, err := m.keychain.LoadLegacyWalletWithBiometry(ctx)
	if err != nil {
		return err
	}
	defer crypto.Zero(mnemonic)

	preferred, err := m.keychain.AccessType(ctx)
	if err != nil {
		return err
	}

	key, err := m.keychain.GenerateEncryptionKey()
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	rb := m.newRollback(preferred)
	defer func() {
		if err != nil {
			err = rb.run(ctx, err)
		}
	}()

	rb.wrote(types.FactorNewBiometric)
	if err := m.keychain.StoreEncryptionKeyWithBiometry(ctx, key); err != nil {
		return err
	}
	if err := m.keychain.StoreWalletSecret(ctx, m.walletID, key, mnemonic); err != nil {
		return err
	}
	rb.commit()
	return nil
}

func (m *Migrator) completePartialMigration(ctx context.Context, pin string) error {
	if err := m.partialMigration(ctx, pin); err != nil {
		return classify(ctx, string(types.MigrationCompletePartial), "Failed to complete partial migration", err)
	}
	return nil
}

// partialMigration writes one fresh key under both factors so they can
// never decrypt to different secrets. Until the secret is rewritten the old
// biometric key is the only one that opens it, so a failure after the
// biometric write erases that factor too and leaves the legacy copies to
// drive the next attempt.
func (m *Migrator) partialMigration(ctx context.Context, pin string) (err error) {
	mnemonic, err := m.keychain.LoadLegacyWalletWithPin(ctx, pin)
	if err != nil {
		return err
	}
	defer crypto.Zero(mnemonic)

	preferred, err := m.keychain.AccessType(ctx)
	if err != nil {
		return err
	}

	key, err := m.keychain.GenerateEncryptionKey()
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	rb := m.newRollback(preferred)
	defer func() {
		if err != nil {
			err = rb.run(ctx, err)
		}
	}()

	rb.wrote(types.FactorNewPin)
	if err := m.keychain.StoreEncryptionKeyWithPin(ctx, key, pin); err != nil {
		return err
	}
	rb.wrote(types.FactorNewBiometric)
	if err := m.keychain.StoreEncryptionKeyWithBiometry(ctx, key); err != nil {
		return err
	}
	if err := m.keychain.StoreWalletSecret(ctx, m.walletID, key, mnemonic); err != nil {
		return err
	}
	rb.commit()
	return m.keychain.ClearLegacyWalletData(ctx)
}

// rollback undoes the new-format writes of a migration that failed before
// the wallet secret was stored under the new key. Once committed it is a no-op:
// the new keys and the secret agree and the legacy copies are redundant.
type rollback struct {
	keychain  Keychain
	preferred types.AccessType
	written   []types.Factor
	committed bool
}

func (m *Migrator) newRollback(preferred types.AccessType) *rollback {
	return &rollback{keychain: m.keychain, preferred: preferred}
}

// wrote is called before the write is attempted; a write that fails halfway
// is erased as well.
func (r *rollback) wrote(f types.Factor) {
	r.written = append(r.written, f)
}

func (r *rollback) commit() {
	r.committed = true
}

func (r *rollback) run(ctx context.Context, cause error) error {
	if r.committed {
		return cause
	}

	errs := []error{cause}
	for _, f := range r.written {
		if err := r.keychain.Erase(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	if r.preferred != "" {
		if err := r.keychain.SetAccessType(ctx, r.preferred); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 1 {
		logger.Warn(ctx, "keychain migration rolled back", "factors", r.written)
		return cause
	}
	logger.Error(ctx, "failed to roll back keychain migration", "error", errors.Join(errs[1:]...))
	return errors.Join(errs...)
}
