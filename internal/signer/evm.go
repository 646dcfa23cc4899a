package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/better-wallet/seedless/internal/remote"
)

// EVMSigner signs EVM transactions with one remote key
type EVMSigner struct {
	session remote.Session
	keyID   string
	chainID *big.Int
}

// NewEVMSigner creates a signer for keyID on chainID
func NewEVMSigner(session remote.Session, keyID string, chainID *big.Int) (*EVMSigner, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	return &EVMSigner{session: session, keyID: keyID, chainID: chainID}, nil
}

// SignTx returns tx with the remote signature attached
func (s *EVMSigner) SignTx(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	signer := ethtypes.LatestSignerForChainID(s.chainID)

	sig, err := SignDigest(ctx, s.session, s.keyID, signer.Hash(tx).Bytes())
	if err != nil {
		return nil, err
	}

	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}
	return signed, nil
}

// SignTransaction signs tx and returns its 0x-prefixed binary encoding
func (s *EVMSigner) SignTransaction(ctx context.Context, tx *ethtypes.Transaction) (string, error) {
	signed, err := s.SignTx(ctx, tx)
	if err != nil {
		return "", err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return hexutil.Encode(raw), nil
}
