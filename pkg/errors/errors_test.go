package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "wallet_locked: Wallet is locked", ErrWalletLocked.Error())
	assert.Equal(t, "bad_pin: Incorrect PIN (pin is required)", BadPin("pin is required").Error())
}

func TestNewWithDetail(t *testing.T) {
	plain := New("custom", "Custom failure", http.StatusTeapot)
	assert.Empty(t, plain.Detail)
	assert.Equal(t, http.StatusTeapot, plain.StatusCode)

	detailed := NewWithDetail("custom", "Custom failure", "input 2", http.StatusBadGateway)
	assert.Equal(t, "input 2", detailed.Detail)
	assert.Equal(t, http.StatusBadGateway, detailed.StatusCode)
}

func TestAppError_JSONHidesInternals(t *testing.T) {
	err := MigrationFailed("runPinMigration", errors.New("pq: connection refused"))

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, ErrCodeMigrationFailed, body["code"])
	assert.NotContains(t, body, "StatusCode")
	assert.NotContains(t, body, "Err")
}

func TestTaxonomyConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		sentinel   *AppError
		statusCode int
	}{
		{name: "bad pin", err: BadPin("pin is required"), sentinel: ErrBadPin, statusCode: http.StatusUnauthorized},
		{name: "biometric", err: BiometricAuth(errors.New("user cancelled")), sentinel: ErrBiometricAuth, statusCode: http.StatusUnauthorized},
		{name: "migration", err: MigrationFailed("runPinMigration", errors.New("disk full")), sentinel: ErrMigrationFailed, statusCode: http.StatusInternalServerError},
		{name: "signing key", err: SigningKeyNotFound("address: 0xabc"), sentinel: ErrSigningKeyNotFound, statusCode: http.StatusNotFound},
		{name: "public key", err: InvalidPublicKey("length 33"), sentinel: ErrInvalidPublicKey, statusCode: http.StatusBadRequest},
		{name: "unsupported", err: Unsupported("schnorr"), sentinel: ErrUnsupportedOperation, statusCode: http.StatusNotImplemented},
		{name: "signature length", err: InvalidSignatureLength(64), sentinel: ErrInvalidSignatureLength, statusCode: http.StatusBadGateway},
		{name: "invalid signatures", err: InvalidSignatures("input 0"), sentinel: ErrInvalidSignatures, statusCode: http.StatusBadGateway},
		{name: "account index", err: AccountIndex(0), sentinel: ErrAccountIndex, statusCode: http.StatusBadRequest},
		{name: "public key missing", err: PublicKeyNotAvailable("account 3"), sentinel: ErrPublicKeyNotAvailable, statusCode: http.StatusNotFound},
		{name: "redeem script", err: RedeemScript(errors.New("empty script")), sentinel: ErrRedeemScript, statusCode: http.StatusBadRequest},
		{name: "mnemonic id", err: MnemonicIDNotFound("no derivation info"), sentinel: ErrMnemonicIDNotFound, statusCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sentinel.Code, tt.err.Code)
			assert.Equal(t, tt.sentinel.Message, tt.err.Message)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.sentinel))
		})
	}
}

func TestAppError_Is(t *testing.T) {
	assert.True(t, errors.Is(BadPin("x"), ErrBadPin))
	assert.False(t, errors.Is(BadPin("x"), ErrBiometricAuth))
	assert.False(t, errors.Is(errors.New("bad_pin"), ErrBadPin))
}

func TestMigrationFailed_KeepsCause(t *testing.T) {
	cause := errors.New("storage unavailable")
	err := MigrationFailed("completePartialMigration", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Detail, "completePartialMigration")
	assert.Contains(t, err.Detail, "storage unavailable")
}

func TestProvisioningFailed(t *testing.T) {
	err := ProvisioningFailed(http.StatusConflict, `{"error":"exists"}`)

	assert.Equal(t, ErrCodeProvisioningFailed, err.Code)
	assert.Contains(t, err.Detail, "409")
	assert.Contains(t, err.Detail, "exists")
}

func TestChainNotSupported(t *testing.T) {
	err := ChainNotSupported("solana")

	assert.Equal(t, ErrCodeChainNotSupported, err.Code)
	assert.Contains(t, err.Detail, "solana")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestIsAppError(t *testing.T) {
	appErr, ok := IsAppError(fmt.Errorf("unlock: %w", ErrWalletLocked))
	require.True(t, ok)
	assert.Same(t, ErrWalletLocked, appErr)

	appErr, ok = IsAppError(errors.New("plain"))
	assert.False(t, ok)
	assert.Nil(t, appErr)
}

func TestSentinelStatuses(t *testing.T) {
	tests := []struct {
		err        *AppError
		statusCode int
	}{
		{ErrBadPin, http.StatusUnauthorized},
		{ErrWalletLocked, http.StatusConflict},
		{ErrNotMigrated, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrPublicKeyNotAvailable, http.StatusNotFound},
		{ErrUnsupportedOperation, http.StatusNotImplemented},
		{ErrAccountIndex, http.StatusBadRequest},
		{ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestErrorCodesUnique(t *testing.T) {
	codes := []string{
		ErrCodeUnauthorized,
		ErrCodeNotFound,
		ErrCodeBadRequest,
		ErrCodeRateLimited,
		ErrCodeInternalError,
		ErrCodeWalletLocked,
		ErrCodeChainNotSupported,
		ErrCodeBadPin,
		ErrCodeBiometricAuth,
		ErrCodeMigrationFailed,
		ErrCodeNotMigrated,
		ErrCodeSigningKeyNotFound,
		ErrCodePublicKeyNotAvailable,
		ErrCodeInvalidPublicKey,
		ErrCodeUnsupportedOperation,
		ErrCodeInvalidSignatureLength,
		ErrCodeInvalidSignatures,
		ErrCodeRedeemScript,
		ErrCodeRemoteSigningFailed,
		ErrCodeAccountIndex,
		ErrCodeMnemonicIDNotFound,
		ErrCodeAccountsNotCreated,
		ErrCodeAddressNotFound,
		ErrCodeProvisioningFailed,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
