package api

import (
	"github.com/better-wallet/seedless/internal/eth"
	"github.com/better-wallet/seedless/pkg/types"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status   string `json:"status"`
	WalletID string `json:"wallet_id"`
	Unlocked bool   `json:"unlocked"`
}

// UnlockRequest opens the wallet with one factor. PIN is ignored for BIO.
type UnlockRequest struct {
	AccessType types.AccessType `json:"access_type"`
	PIN        string           `json:"pin,omitempty"`
}

// UnlockResponse describes the unlocked wallet
type UnlockResponse struct {
	AccountCount int                     `json:"account_count"`
	Addresses    map[types.VMType]string `json:"addresses"`
}

// MigrationStatusResponse reports the pending keychain migration
type MigrationStatusResponse struct {
	AccessType      types.AccessType      `json:"access_type"`
	MigrationStatus types.MigrationStatus `json:"migration_status"`
	KeychainState   types.KeychainState   `json:"keychain_state"`
}

// AccountAddresses lists the addresses of one account
type AccountAddresses struct {
	AccountIndex int                     `json:"account_index"`
	Addresses    map[types.VMType]string `json:"addresses"`
}

// AddressesResponse is returned by /v1/addresses
type AddressesResponse struct {
	Accounts []AccountAddresses `json:"accounts"`
}

// AccountsRequest provisions one account, or every missing key when
// DeriveMissing is set
type AccountsRequest struct {
	AccountIndex  *int `json:"account_index,omitempty"`
	DeriveMissing bool `json:"derive_missing,omitempty"`
}

// AccountsResponse reports the account count after provisioning
type AccountsResponse struct {
	AccountCount int `json:"account_count"`
}

// SignMessageResponse carries a hex (EVM) or cb58 (Avalanche) signature
type SignMessageResponse struct {
	Signature string `json:"signature"`
}

// SignEvmRequest signs an EVM transaction for an account
type SignEvmRequest struct {
	AccountIndex int           `json:"account_index"`
	Transaction  eth.TxRequest `json:"transaction"`
}

// SignAvalancheRequest signs a checksummed hex X/P-chain transaction. UTXOs
// are the checksummed hex UTXOs its inputs spend.
type SignAvalancheRequest struct {
	AccountIndex int          `json:"account_index"`
	VM           types.VMType `json:"vm"`
	Transaction  string       `json:"transaction"`
	UTXOs        []string     `json:"utxos"`
}

// SignSolanaRequest signs a base64 Solana wire transaction
type SignSolanaRequest struct {
	AccountIndex int    `json:"account_index"`
	Transaction  string `json:"transaction"`
}

// SignBtcRequest signs a Bitcoin transaction spending P2WPKH outputs
type SignBtcRequest struct {
	AccountIndex int                         `json:"account_index"`
	Transaction  types.BtcTransactionRequest `json:"transaction"`
}

// SignedTransactionResponse carries the signed transaction
type SignedTransactionResponse struct {
	SignedTransaction string `json:"signed_transaction"`
	Hash              string `json:"hash,omitempty"`
}

// PinRequest carries a PIN to verify or to authorize enabling biometry
type PinRequest struct {
	PIN string `json:"pin"`
}

// VerifyPinResponse reports whether the PIN opens the keychain
type VerifyPinResponse struct {
	Correct bool `json:"correct"`
}

// ChangePinRequest replaces the PIN protecting the encryption key
type ChangePinRequest struct {
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
}

// AuditResponse lists audit events, newest first
type AuditResponse struct {
	Events []*types.AuditEvent `json:"events"`
}
