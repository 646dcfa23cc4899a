package types

import "time"

// Audit actions
const (
	AuditActionUnlock          = "wallet.unlock"
	AuditActionMigrate         = "keychain.migrate"
	AuditActionChangePin       = "keychain.change_pin"
	AuditActionEnableBiometry  = "keychain.enable_biometry"
	AuditActionDisableBiometry = "keychain.disable_biometry"
	AuditActionReset           = "keychain.reset"
	AuditActionAddAccount      = "wallet.add_account"
	AuditActionSignMessage     = "wallet.sign_message"
	AuditActionSignTransaction = "wallet.sign_transaction"
)

// Audit outcomes
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditEvent is one entry of the wallet's audit trail. It never carries
// PINs, secrets or signatures.
type AuditEvent struct {
	ID           int64          `json:"id"`
	WalletID     string         `json:"wallet_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Outcome      string         `json:"outcome"`
	ErrorCode    *string        `json:"error_code,omitempty"`
	TxHash       *string        `json:"tx_hash,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RequestID    *string        `json:"request_id,omitempty"`
	ClientIP     *string        `json:"client_ip,omitempty"`
	UserAgent    *string        `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditQuery filters audit reads. Zero values match everything.
type AuditQuery struct {
	WalletID string
	Action   string
	Limit    int
}
