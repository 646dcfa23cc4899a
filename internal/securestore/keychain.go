package securestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/logger"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Service names under which the keychain persists items
const (
	ServiceLegacyWalletPin  = "legacy-wallet-pin"
	ServiceLegacyWalletBio  = "legacy-wallet-bio"
	ServiceEncryptionKeyPin = "encryption-key-pin"
	ServiceEncryptionKeyBio = "encryption-key-bio"
	ServiceAccessType       = "secure-access-set"

	walletSecretPrefix = "wallet-secret-"
)

const biometricPrompt = "Unlock wallet"

// WalletSecretService returns the service name holding a wallet's secret
func WalletSecretService(walletID string) string {
	return walletSecretPrefix + walletID
}

// ServiceForFactor maps a storage factor to its service name
func ServiceForFactor(f types.Factor) (string, error) {
	switch f {
	case types.FactorLegacyPin:
		return ServiceLegacyWalletPin, nil
	case types.FactorLegacyBiometric:
		return ServiceLegacyWalletBio, nil
	case types.FactorNewPin:
		return ServiceEncryptionKeyPin, nil
	case types.FactorNewBiometric:
		return ServiceEncryptionKeyBio, nil
	default:
		return "", fmt.Errorf("unknown factor: %s", f)
	}
}

func isPinFactor(f types.Factor) bool {
	return f == types.FactorLegacyPin || f == types.FactorNewPin
}

// AuthOptions gates access to a factor
type AuthOptions struct {
	PIN    string
	Prompt string
}

// Keychain stores the wallet secret and its encryption keys under the
// legacy single-factor and the new two-factor schemes.
// It never caches key material; callers pass encryption keys explicitly.
type Keychain struct {
	backend    Backend
	sealer     Sealer
	biometrics Biometrics
	pin        PinCipher
}

// NewKeychain creates a keychain over a backend
func NewKeychain(backend Backend, sealer Sealer, biometrics Biometrics, pin PinCipher) *Keychain {
	if biometrics == nil {
		biometrics = HostPresence
	}
	return &Keychain{
		backend:    backend,
		sealer:     sealer,
		biometrics: biometrics,
		pin:        pin,
	}
}

// HasKey reports whether an item exists for the factor without opening it
func (k *Keychain) HasKey(ctx context.Context, f types.Factor) (bool, error) {
	service, err := ServiceForFactor(f)
	if err != nil {
		return false, err
	}

	_, err = k.backend.Get(ctx, service)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s: %w", f, err)
	}
}

// Store encrypts data for the factor and persists it
func (k *Keychain) Store(ctx context.Context, f types.Factor, data []byte, opts AuthOptions) error {
	service, err := ServiceForFactor(f)
	if err != nil {
		return err
	}

	var sealed []byte
	if isPinFactor(f) {
		if opts.PIN == "" {
			return apperrors.BadPin("PIN is required")
		}
		sealed, err = k.pin.Seal(opts.PIN, data)
	} else {
		sealed, err = k.sealer.Encrypt(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", f, err)
	}

	if err := k.backend.Put(ctx, service, sealed); err != nil {
		return fmt.Errorf("failed to store %s: %w", f, err)
	}
	return nil
}

// Load opens the factor. PIN factors fail with BadPin on a wrong PIN;
// biometric factors prompt first and fail with BiometricAuth when rejected.
func (k *Keychain) Load(ctx context.Context, f types.Factor, opts AuthOptions) ([]byte, error) {
	service, err := ServiceForFactor(f)
	if err != nil {
		return nil, err
	}

	if isPinFactor(f) && opts.PIN == "" {
		return nil, apperrors.BadPin("PIN is required")
	}

	sealed, err := k.backend.Get(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", f, err)
	}

	if isPinFactor(f) {
		data, err := k.pin.Open(opts.PIN, sealed)
		if errors.Is(err, ErrDecrypt) {
			return nil, apperrors.BadPin(fmt.Sprintf("cannot open %s", f))
		}
		return data, err
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = biometricPrompt
	}
	if err := k.biometrics.Authenticate(ctx, prompt); err != nil {
		return nil, apperrors.BiometricAuth(err)
	}

	data, err := k.sealer.Decrypt(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal %s: %w", f, err)
	}
	return data, nil
}

// Erase deletes the factor's item
func (k *Keychain) Erase(ctx context.Context, f types.Factor) error {
	service, err := ServiceForFactor(f)
	if err != nil {
		return err
	}
	if err := k.backend.Delete(ctx, service); err != nil {
		return fmt.Errorf("failed to erase %s: %w", f, err)
	}
	return nil
}

// StoreLegacyWalletWithPin writes a wallet in the single-factor PIN scheme
func (k *Keychain) StoreLegacyWalletWithPin(ctx context.Context, mnemonic []byte, pin string) error {
	return k.Store(ctx, types.FactorLegacyPin, mnemonic, AuthOptions{PIN: pin})
}

// StoreLegacyWalletWithBiometry writes a wallet in the single-factor biometric scheme
func (k *Keychain) StoreLegacyWalletWithBiometry(ctx context.Context, mnemonic []byte) error {
	return k.Store(ctx, types.FactorLegacyBiometric, mnemonic, AuthOptions{})
}

// LoadLegacyWalletWithPin reads the legacy secret through the PIN factor
func (k *Keychain) LoadLegacyWalletWithPin(ctx context.Context, pin string) ([]byte, error) {
	return k.Load(ctx, types.FactorLegacyPin, AuthOptions{PIN: pin})
}

// LoadLegacyWalletWithBiometry reads the legacy secret through the biometric factor
func (k *Keychain) LoadLegacyWalletWithBiometry(ctx context.Context) ([]byte, error) {
	return k.Load(ctx, types.FactorLegacyBiometric, AuthOptions{})
}

// GenerateEncryptionKey returns a fresh key for the wallet secret
func (k *Keychain) GenerateEncryptionKey() ([]byte, error) {
	return crypto.GenerateEncryptionKey()
}

// StoreEncryptionKeyWithPin persists key under the PIN factor and records PIN access
func (k *Keychain) StoreEncryptionKeyWithPin(ctx context.Context, key []byte, pin string) error {
	if err := k.Store(ctx, types.FactorNewPin, key, AuthOptions{PIN: pin}); err != nil {
		return err
	}
	return k.SetAccessType(ctx, types.AccessTypePIN)
}

// StoreEncryptionKeyWithBiometry persists key under the biometric factor and records BIO access
func (k *Keychain) StoreEncryptionKeyWithBiometry(ctx context.Context, key []byte) error {
	if err := k.Store(ctx, types.FactorNewBiometric, key, AuthOptions{}); err != nil {
		return err
	}
	return k.SetAccessType(ctx, types.AccessTypeBIO)
}

// LoadEncryptionKeyWithPin opens the PIN copy of the encryption key
func (k *Keychain) LoadEncryptionKeyWithPin(ctx context.Context, pin string) ([]byte, error) {
	return k.Load(ctx, types.FactorNewPin, AuthOptions{PIN: pin})
}

// LoadEncryptionKeyWithBiometry opens the biometric copy of the encryption key
func (k *Keychain) LoadEncryptionKeyWithBiometry(ctx context.Context) ([]byte, error) {
	return k.Load(ctx, types.FactorNewBiometric, AuthOptions{})
}

// StoreWalletSecret encrypts secret with key under the wallet's service
func (k *Keychain) StoreWalletSecret(ctx context.Context, walletID string, key, secret []byte) error {
	sealed, err := sealAESGCM(key, secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt wallet secret: %w", err)
	}
	if err := k.backend.Put(ctx, WalletSecretService(walletID), sealed); err != nil {
		return fmt.Errorf("failed to store wallet secret: %w", err)
	}
	return nil
}

// LoadWalletSecret decrypts the wallet's secret with key
func (k *Keychain) LoadWalletSecret(ctx context.Context, walletID string, key []byte) ([]byte, error) {
	sealed, err := k.backend.Get(ctx, WalletSecretService(walletID))
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet secret: %w", err)
	}
	secret, err := openAESGCM(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt wallet secret: %w", err)
	}
	return secret, nil
}

// ClearLegacyWalletData erases both legacy copies
func (k *Keychain) ClearLegacyWalletData(ctx context.Context) error {
	if err := k.Erase(ctx, types.FactorLegacyPin); err != nil {
		return err
	}
	if err := k.Erase(ctx, types.FactorLegacyBiometric); err != nil {
		return err
	}
	logger.Debug(ctx, "legacy wallet data cleared")
	return nil
}

// IsPinCorrect tries the PIN against the legacy or the new PIN factor.
// A missing item counts as an incorrect PIN.
func (k *Keychain) IsPinCorrect(ctx context.Context, pin string, legacy bool) (bool, error) {
	f := types.FactorNewPin
	if legacy {
		f = types.FactorLegacyPin
	}

	data, err := k.Load(ctx, f, AuthOptions{PIN: pin})
	switch {
	case err == nil:
		crypto.Zero(data)
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, apperrors.ErrBadPin):
		return false, nil
	default:
		return false, err
	}
}

// AccessType returns the last chosen access type, or "" if none was recorded
func (k *Keychain) AccessType(ctx context.Context) (types.AccessType, error) {
	raw, err := k.backend.Get(ctx, ServiceAccessType)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read access type: %w", err)
	}
	return types.AccessType(raw), nil
}

// SetAccessType records the access type preference
func (k *Keychain) SetAccessType(ctx context.Context, access types.AccessType) error {
	if !access.IsValid() {
		return fmt.Errorf("invalid access type: %q", access)
	}
	if err := k.backend.Put(ctx, ServiceAccessType, []byte(access)); err != nil {
		return fmt.Errorf("failed to store access type: %w", err)
	}
	return nil
}

// ChangePin re-encrypts the PIN copy of the encryption key under newPin
func (k *Keychain) ChangePin(ctx context.Context, oldPin, newPin string) error {
	if newPin == "" {
		return apperrors.BadPin("new PIN is required")
	}
	key, err := k.LoadEncryptionKeyWithPin(ctx, oldPin)
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	return k.Store(ctx, types.FactorNewPin, key, AuthOptions{PIN: newPin})
}

// EnableBiometry copies the PIN-protected encryption key to the biometric factor
func (k *Keychain) EnableBiometry(ctx context.Context, pin string) error {
	key, err := k.LoadEncryptionKeyWithPin(ctx, pin)
	if err != nil {
		return err
	}
	defer crypto.Zero(key)

	return k.StoreEncryptionKeyWithBiometry(ctx, key)
}

// DisableBiometry drops the biometric copy and falls back to PIN access
func (k *Keychain) DisableBiometry(ctx context.Context) error {
	if err := k.Erase(ctx, types.FactorNewBiometric); err != nil {
		return err
	}
	return k.SetAccessType(ctx, types.AccessTypePIN)
}

// ClearAll erases every factor, the access preference and the given wallets' secrets
func (k *Keychain) ClearAll(ctx context.Context, walletIDs []string) error {
	for _, f := range types.AllFactors() {
		if err := k.Erase(ctx, f); err != nil {
			return err
		}
	}
	for _, id := range walletIDs {
		if err := k.backend.Delete(ctx, WalletSecretService(id)); err != nil {
			return fmt.Errorf("failed to erase wallet secret %s: %w", id, err)
		}
	}
	if err := k.backend.Delete(ctx, ServiceAccessType); err != nil {
		return fmt.Errorf("failed to erase access type: %w", err)
	}
	return nil
}
