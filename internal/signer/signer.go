// Package signer turns chain-native transactions and messages into digests,
// has them signed by the remote custody session and reassembles the signed
// artifacts. No private key ever reaches this package.
package signer

import (
	"context"
	"encoding/base64"

	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// RecoverableSignatureLen is r || s || v as returned by the custody backend
const RecoverableSignatureLen = 65

// SignDigest asks the session to sign digest with keyID and returns
// r || s || v with v normalized to 0 or 1.
func SignDigest(ctx context.Context, session remote.Session, keyID string, digest []byte) ([]byte, error) {
	sig, err := session.SignBlob(ctx, keyID, base64.StdEncoding.EncodeToString(digest))
	if err != nil {
		return nil, err
	}
	if len(sig) != RecoverableSignatureLen {
		return nil, apperrors.InvalidSignatureLength(len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	return sig, nil
}
