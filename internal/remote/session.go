// Package remote talks to the key-custody backend that holds the wallet's
// signing keys. Nothing in this package ever sees a private key.
package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/better-wallet/seedless/pkg/types"
)

// Session is an authenticated session against the custody backend
type Session interface {
	// Keys lists the keys this identity may sign with
	Keys(ctx context.Context) ([]types.KeyInfo, error)

	// ProveIdentity returns a proof used to authorize account provisioning
	ProveIdentity(ctx context.Context) (*types.IdentityProof, error)

	// SignBlob signs a base64 blob. Secp256k1 keys take a 32-byte digest and
	// return r || s || v; Ed25519 keys sign the blob and return 64 bytes.
	SignBlob(ctx context.Context, keyID, digestB64 string) ([]byte, error)

	// SignBtc signs one segwit input and returns r || s || v
	SignBtc(ctx context.Context, address string, req *types.BtcSignRequest) ([]byte, error)
}

// SessionSecret is the wallet secret persisted by the keychain. Legacy
// wallets stored only a mnemonic; it is kept for enclave-backed signers.
type SessionSecret struct {
	OrgID     string `json:"org_id,omitempty"`
	Token     string `json:"token,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
	OIDCToken string `json:"oidc_token,omitempty"`
	Mnemonic  string `json:"mnemonic,omitempty"`
}

// ParseSessionSecret decodes a wallet secret. A non-JSON secret is a bare mnemonic.
func ParseSessionSecret(raw []byte) (*SessionSecret, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("wallet secret is empty")
	}

	if trimmed[0] != '{' {
		return &SessionSecret{Mnemonic: string(trimmed)}, nil
	}

	var secret SessionSecret
	if err := json.Unmarshal(trimmed, &secret); err != nil {
		return nil, fmt.Errorf("failed to decode wallet secret: %w", err)
	}
	return &secret, nil
}

// signatureResponse is how both transports return signatures
type signatureResponse struct {
	Signature string `json:"signature"`
}

func decodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty signature in response")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signature is not hex: %w", err)
	}
	return sig, nil
}
