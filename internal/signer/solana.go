package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"

	"github.com/gagliardetto/solana-go"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// ParseSolanaTx decodes a base64 wire transaction, legacy or v0
func ParseSolanaTx(encoded string) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromBase64(encoded)
	if err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid transaction encoding", err.Error(), http.StatusBadRequest)
	}
	return tx, nil
}

// SolanaSigner signs Solana transactions with one remote Ed25519 key
type SolanaSigner struct {
	session remote.Session
	key     types.KeyInfo
}

// NewSolanaSigner creates a signer for key
func NewSolanaSigner(session remote.Session, key types.KeyInfo) *SolanaSigner {
	return &SolanaSigner{session: session, key: key}
}

// SignTx adds the key's signature to tx and returns it as base64. A
// transaction the key is not a signer of, or has already signed, is returned
// without a remote call.
func (s *SolanaSigner) SignTx(ctx context.Context, tx *solana.Transaction) (string, error) {
	if s.key.KeyType != types.KeyTypeEd25519SolanaAddr {
		return "", apperrors.SigningKeyNotFound(fmt.Sprintf("key type %s cannot sign solana transactions", s.key.KeyType))
	}
	raw, err := crypto.DecodePubKeyHex(s.key.PublicKey)
	if err != nil {
		return "", err
	}
	pub, err := crypto.SolanaPublicKey(raw)
	if err != nil {
		return "", err
	}

	signers := tx.Message.Signers()
	idx := slices.IndexFunc(signers, pub.Equals)
	if idx < 0 {
		return encodeSolanaTx(tx)
	}
	switch len(tx.Signatures) {
	case len(signers):
	case 0:
		tx.Signatures = make([]solana.Signature, len(signers))
	default:
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid transaction",
			fmt.Sprintf("%d signatures for %d signers", len(tx.Signatures), len(signers)), http.StatusBadRequest)
	}
	if !tx.Signatures[idx].IsZero() {
		return encodeSolanaTx(tx)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	sig, err := s.session.SignBlob(ctx, s.key.KeyID, base64.StdEncoding.EncodeToString(msg))
	if err != nil {
		return "", err
	}
	if len(sig) != ed25519.SignatureSize {
		return "", apperrors.InvalidSignatureLength(len(sig))
	}
	signature := solana.SignatureFromBytes(sig)
	if !signature.Verify(pub, msg) {
		return "", apperrors.InvalidSignatures("remote signature does not verify against " + pub.String())
	}
	tx.Signatures[idx] = signature
	return encodeSolanaTx(tx)
}

func encodeSolanaTx(tx *solana.Transaction) (string, error) {
	out, err := tx.ToBase64()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return out, nil
}
