package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`

	// Err is the lower-level failure that was reclassified, if any
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeNotFound          = "not_found"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternalError     = "internal_error"
	ErrCodeWalletLocked      = "wallet_locked"
	ErrCodeChainNotSupported = "chain_not_supported"

	// Unlock and migration
	ErrCodeBadPin          = "bad_pin"
	ErrCodeBiometricAuth   = "biometric_auth"
	ErrCodeMigrationFailed = "migration_failed"
	ErrCodeNotMigrated     = "keychain_not_migrated"

	// Key lookup and signing
	ErrCodeSigningKeyNotFound     = "signing_key_not_found"
	ErrCodePublicKeyNotAvailable  = "public_key_not_available"
	ErrCodeInvalidPublicKey       = "invalid_public_key"
	ErrCodeUnsupportedOperation   = "unsupported_operation"
	ErrCodeInvalidSignatureLength = "invalid_signature_length"
	ErrCodeInvalidSignatures      = "invalid_signatures"
	ErrCodeRedeemScript           = "redeem_script"
	ErrCodeRemoteSigningFailed    = "remote_signing_failed"

	// Accounts
	ErrCodeAccountIndex       = "account_index"
	ErrCodeMnemonicIDNotFound = "mnemonic_id_not_found"
	ErrCodeAccountsNotCreated = "accounts_not_created"
	ErrCodeAddressNotFound    = "address_not_found"
	ErrCodeProvisioningFailed = "provisioning_failed"
)

// Predefined errors
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrWalletLocked = &AppError{
		Code:       ErrCodeWalletLocked,
		Message:    "Wallet is locked",
		StatusCode: http.StatusConflict,
	}

	ErrBadPin = &AppError{
		Code:       ErrCodeBadPin,
		Message:    "Incorrect PIN",
		StatusCode: http.StatusUnauthorized,
	}

	ErrBiometricAuth = &AppError{
		Code:       ErrCodeBiometricAuth,
		Message:    "Biometric authentication failed",
		StatusCode: http.StatusUnauthorized,
	}

	ErrMigrationFailed = &AppError{
		Code:       ErrCodeMigrationFailed,
		Message:    "Keychain migration failed",
		StatusCode: http.StatusInternalServerError,
	}

	ErrNotMigrated = &AppError{
		Code:       ErrCodeNotMigrated,
		Message:    "Keychain has not been migrated; unlock with the PIN first",
		StatusCode: http.StatusConflict,
	}

	ErrSigningKeyNotFound = &AppError{
		Code:       ErrCodeSigningKeyNotFound,
		Message:    "Signing key not found",
		StatusCode: http.StatusNotFound,
	}

	ErrPublicKeyNotAvailable = &AppError{
		Code:       ErrCodePublicKeyNotAvailable,
		Message:    "Public key not available",
		StatusCode: http.StatusNotFound,
	}

	ErrInvalidPublicKey = &AppError{
		Code:       ErrCodeInvalidPublicKey,
		Message:    "Invalid public key",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnsupportedOperation = &AppError{
		Code:       ErrCodeUnsupportedOperation,
		Message:    "Unsupported operation",
		StatusCode: http.StatusNotImplemented,
	}

	ErrInvalidSignatureLength = &AppError{
		Code:       ErrCodeInvalidSignatureLength,
		Message:    "Unexpected signature length",
		StatusCode: http.StatusBadGateway,
	}

	ErrInvalidSignatures = &AppError{
		Code:       ErrCodeInvalidSignatures,
		Message:    "Unable to sign Btc transaction: invalid signatures",
		StatusCode: http.StatusBadGateway,
	}

	ErrRedeemScript = &AppError{
		Code:       ErrCodeRedeemScript,
		Message:    "Unable to create redeem script",
		StatusCode: http.StatusBadRequest,
	}

	ErrAccountIndex = &AppError{
		Code:       ErrCodeAccountIndex,
		Message:    "Account index must be greater than or equal to 1",
		StatusCode: http.StatusBadRequest,
	}

	ErrMnemonicIDNotFound = &AppError{
		Code:       ErrCodeMnemonicIDNotFound,
		Message:    "Cannot retrieve the mnemonic id",
		StatusCode: http.StatusNotFound,
	}

	ErrAccountsNotCreated = &AppError{
		Code:       ErrCodeAccountsNotCreated,
		Message:    "Accounts not created",
		StatusCode: http.StatusNotFound,
	}

	ErrAddressNotFound = &AppError{
		Code:       ErrCodeAddressNotFound,
		Message:    "Address not found",
		StatusCode: http.StatusNotFound,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// withDetail copies a predefined error and attaches detail and cause
func withDetail(base *AppError, detail string, cause error) *AppError {
	return &AppError{
		Code:       base.Code,
		Message:    base.Message,
		Detail:     detail,
		StatusCode: base.StatusCode,
		Err:        cause,
	}
}

// BadPin creates a bad PIN error
func BadPin(detail string) *AppError {
	return withDetail(ErrBadPin, detail, nil)
}

// BiometricAuth creates a biometric authentication error
func BiometricAuth(cause error) *AppError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return withDetail(ErrBiometricAuth, detail, cause)
}

// MigrationFailed reclassifies a lower-level failure hit during migration
func MigrationFailed(detail string, cause error) *AppError {
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", detail, cause)
	}
	return withDetail(ErrMigrationFailed, detail, cause)
}

// SigningKeyNotFound creates a signing key lookup error
func SigningKeyNotFound(detail string) *AppError {
	return withDetail(ErrSigningKeyNotFound, detail, nil)
}

// PublicKeyNotAvailable reports a missing identity public key
func PublicKeyNotAvailable(detail string) *AppError {
	return withDetail(ErrPublicKeyNotAvailable, detail, nil)
}

// InvalidPublicKey creates an invalid public key error
func InvalidPublicKey(detail string) *AppError {
	return withDetail(ErrInvalidPublicKey, detail, nil)
}

// Unsupported creates an unsupported operation error
func Unsupported(detail string) *AppError {
	return withDetail(ErrUnsupportedOperation, detail, nil)
}

// InvalidSignatureLength creates a signature length error
func InvalidSignatureLength(got int) *AppError {
	return withDetail(ErrInvalidSignatureLength, fmt.Sprintf("expected 65 bytes, got %d", got), nil)
}

// InvalidSignatures creates a signature validation error
func InvalidSignatures(detail string) *AppError {
	return withDetail(ErrInvalidSignatures, detail, nil)
}

// RedeemScript creates a script construction error
func RedeemScript(cause error) *AppError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return withDetail(ErrRedeemScript, detail, cause)
}

// MnemonicIDNotFound reports a seed account with no derivation record
func MnemonicIDNotFound(detail string) *AppError {
	return withDetail(ErrMnemonicIDNotFound, detail, nil)
}

// AccountIndex creates an account index error
func AccountIndex(index int) *AppError {
	return withDetail(ErrAccountIndex, fmt.Sprintf("account_index: %d", index), nil)
}

// ProvisioningFailed reports a non-2xx answer from the provisioning backend
func ProvisioningFailed(status int, body string) *AppError {
	return &AppError{
		Code:       ErrCodeProvisioningFailed,
		Message:    "Account provisioning failed",
		Detail:     fmt.Sprintf("status %d: %s", status, body),
		StatusCode: http.StatusBadGateway,
	}
}

// RemoteSigningFailed reports a failed call to the custody backend
func RemoteSigningFailed(detail string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeRemoteSigningFailed,
		Message:    "Remote signing failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
		Err:        cause,
	}
}

// ChainNotSupported creates a chain not supported error
func ChainNotSupported(chain string) *AppError {
	return &AppError{
		Code:       ErrCodeChainNotSupported,
		Message:    "Chain not supported",
		Detail:     fmt.Sprintf("chain: %s", chain),
		StatusCode: http.StatusBadRequest,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
