package securestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

func newTestKeychain(t *testing.T, bio Biometrics) (*Keychain, *MemoryBackend) {
	t.Helper()

	sealer, err := NewLocalSealer(testMasterKeyHex)
	require.NoError(t, err)

	backend := NewMemoryBackend()
	return NewKeychain(backend, sealer, bio, testPinCipher), backend
}

func TestKeychain_FactorRoundTrip(t *testing.T) {
	ctx := context.Background()
	kc, backend := newTestKeychain(t, nil)

	for _, f := range types.AllFactors() {
		t.Run(string(f), func(t *testing.T) {
			has, err := kc.HasKey(ctx, f)
			require.NoError(t, err)
			assert.False(t, has)

			opts := AuthOptions{PIN: "123456"}
			require.NoError(t, kc.Store(ctx, f, []byte("payload-"+string(f)), opts))

			has, err = kc.HasKey(ctx, f)
			require.NoError(t, err)
			assert.True(t, has)

			data, err := kc.Load(ctx, f, opts)
			require.NoError(t, err)
			assert.Equal(t, []byte("payload-"+string(f)), data)

			service, err := ServiceForFactor(f)
			require.NoError(t, err)
			raw, err := backend.Get(ctx, service)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "payload-")

			require.NoError(t, kc.Erase(ctx, f))
			has, err = kc.HasKey(ctx, f)
			require.NoError(t, err)
			assert.False(t, has)
		})
	}
}

func TestKeychain_LoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing item", func(t *testing.T) {
		kc, _ := newTestKeychain(t, nil)
		_, err := kc.LoadEncryptionKeyWithPin(ctx, "123456")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty pin", func(t *testing.T) {
		kc, _ := newTestKeychain(t, nil)
		_, err := kc.LoadLegacyWalletWithPin(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrBadPin)
	})

	t.Run("wrong pin", func(t *testing.T) {
		kc, _ := newTestKeychain(t, nil)
		require.NoError(t, kc.StoreLegacyWalletWithPin(ctx, []byte("mnemonic"), "123456"))

		_, err := kc.LoadLegacyWalletWithPin(ctx, "000000")
		assert.ErrorIs(t, err, apperrors.ErrBadPin)
	})

	t.Run("biometric rejected", func(t *testing.T) {
		reject := BiometricsFunc(func(ctx context.Context, prompt string) error {
			return ErrBiometricRejected
		})
		kc, _ := newTestKeychain(t, reject)
		require.NoError(t, kc.StoreLegacyWalletWithBiometry(ctx, []byte("mnemonic")))

		_, err := kc.LoadLegacyWalletWithBiometry(ctx)
		assert.ErrorIs(t, err, apperrors.ErrBiometricAuth)
		assert.ErrorIs(t, err, ErrBiometricRejected)
	})

	t.Run("unknown factor", func(t *testing.T) {
		kc, _ := newTestKeychain(t, nil)
		_, err := kc.Load(ctx, types.Factor("other"), AuthOptions{})
		assert.Error(t, err)
	})
}

func TestKeychain_WalletSecret(t *testing.T) {
	ctx := context.Background()
	kc, _ := newTestKeychain(t, nil)

	key, err := kc.GenerateEncryptionKey()
	require.NoError(t, err)

	require.NoError(t, kc.StoreWalletSecret(ctx, "wallet-1", key, []byte("secret")))

	secret, err := kc.LoadWalletSecret(ctx, "wallet-1", key)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), secret)

	other, err := kc.GenerateEncryptionKey()
	require.NoError(t, err)
	_, err = kc.LoadWalletSecret(ctx, "wallet-1", other)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = kc.LoadWalletSecret(ctx, "wallet-2", key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeychain_AccessType(t *testing.T) {
	ctx := context.Background()
	kc, _ := newTestKeychain(t, nil)

	access, err := kc.AccessType(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)

	key, err := kc.GenerateEncryptionKey()
	require.NoError(t, err)

	require.NoError(t, kc.StoreEncryptionKeyWithPin(ctx, key, "123456"))
	access, err = kc.AccessType(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AccessTypePIN, access)

	require.NoError(t, kc.StoreEncryptionKeyWithBiometry(ctx, key))
	access, err = kc.AccessType(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AccessTypeBIO, access)

	assert.Error(t, kc.SetAccessType(ctx, "FACE"))
}

func TestKeychain_IsPinCorrect(t *testing.T) {
	ctx := context.Background()
	kc, _ := newTestKeychain(t, nil)

	ok, err := kc.IsPinCorrect(ctx, "123456", true)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kc.StoreLegacyWalletWithPin(ctx, []byte("m"), "123456"))

	ok, err = kc.IsPinCorrect(ctx, "123456", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kc.IsPinCorrect(ctx, "111111", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = kc.IsPinCorrect(ctx, "123456", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeychain_ChangePinAndBiometry(t *testing.T) {
	ctx := context.Background()
	kc, _ := newTestKeychain(t, nil)

	key, err := kc.GenerateEncryptionKey()
	require.NoError(t, err)
	require.NoError(t, kc.StoreEncryptionKeyWithPin(ctx, key, "123456"))

	require.NoError(t, kc.ChangePin(ctx, "123456", "654321"))
	_, err = kc.LoadEncryptionKeyWithPin(ctx, "123456")
	assert.ErrorIs(t, err, apperrors.ErrBadPin)

	loaded, err := kc.LoadEncryptionKeyWithPin(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	require.NoError(t, kc.EnableBiometry(ctx, "654321"))
	bioKey, err := kc.LoadEncryptionKeyWithBiometry(ctx)
	require.NoError(t, err)
	assert.Equal(t, key, bioKey)

	require.NoError(t, kc.DisableBiometry(ctx))
	has, err := kc.HasKey(ctx, types.FactorNewBiometric)
	require.NoError(t, err)
	assert.False(t, has)

	assert.ErrorIs(t, kc.ChangePin(ctx, "654321", ""), apperrors.ErrBadPin)
}

func TestKeychain_ClearLegacyAndAll(t *testing.T) {
	ctx := context.Background()
	kc, backend := newTestKeychain(t, nil)

	require.NoError(t, kc.StoreLegacyWalletWithPin(ctx, []byte("m"), "123456"))
	require.NoError(t, kc.StoreLegacyWalletWithBiometry(ctx, []byte("m")))
	require.NoError(t, kc.ClearLegacyWalletData(ctx))

	for _, f := range []types.Factor{types.FactorLegacyPin, types.FactorLegacyBiometric} {
		has, err := kc.HasKey(ctx, f)
		require.NoError(t, err)
		assert.False(t, has)
	}

	key, err := kc.GenerateEncryptionKey()
	require.NoError(t, err)
	require.NoError(t, kc.StoreEncryptionKeyWithPin(ctx, key, "123456"))
	require.NoError(t, kc.StoreWalletSecret(ctx, "w1", key, []byte("s")))

	require.NoError(t, kc.ClearAll(ctx, []string{"w1"}))
	assert.Empty(t, backend.Services())
}

type failingBackend struct {
	*MemoryBackend
	getErr error
}

func (b *failingBackend) Get(ctx context.Context, service string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return b.MemoryBackend.Get(ctx, service)
}

func TestKeychain_HasKey_BackendError(t *testing.T) {
	sealer, err := NewLocalSealer(testMasterKeyHex)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	kc := NewKeychain(&failingBackend{MemoryBackend: NewMemoryBackend(), getErr: boom}, sealer, nil, testPinCipher)

	_, err = kc.HasKey(context.Background(), types.FactorNewPin)
	assert.ErrorIs(t, err, boom)
}
