package devsigner

import (
	"context"

	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Session serves a Signer in process as a remote session
type Session struct {
	signer *Signer
}

// NewSession wraps s
func NewSession(s *Signer) *Session {
	return &Session{signer: s}
}

// Signer returns the wrapped signer
func (l *Session) Signer() *Signer {
	return l.signer
}

// Keys lists the signer's keys
func (l *Session) Keys(ctx context.Context) ([]types.KeyInfo, error) {
	return l.signer.Keys()
}

// ProveIdentity returns a fresh identity proof
func (l *Session) ProveIdentity(ctx context.Context) (*types.IdentityProof, error) {
	return l.signer.ProveIdentity(), nil
}

// SignBlob signs a base64 digest
func (l *Session) SignBlob(ctx context.Context, keyID, digestB64 string) ([]byte, error) {
	sig, err := l.signer.SignBlob(keyID, digestB64)
	if err != nil {
		return nil, apperrors.RemoteSigningFailed("sign_blob", err)
	}
	return sig, nil
}

// SignBtc signs one segwit input
func (l *Session) SignBtc(ctx context.Context, address string, req *types.BtcSignRequest) ([]byte, error) {
	sig, err := l.signer.SignBtc(address, req)
	if err != nil {
		return nil, apperrors.RemoteSigningFailed("sign_btc", err)
	}
	return sig, nil
}

var _ remote.Session = (*Session)(nil)
