package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/signer"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// MessageRequest is a dapp message signing request. Data is the raw JSON
// params entry: a string for eth_sign, personal_sign and
// avalanche_signMessage, typed data (or a string holding it) otherwise.
type MessageRequest struct {
	Method       types.RPCMethod `json:"method"`
	Data         json.RawMessage `json:"data"`
	AccountIndex int             `json:"account_index"`
	IsTestnet    bool            `json:"is_testnet"`
}

func invalidMessage(method types.RPCMethod, detail string) error {
	return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid message data", fmt.Sprintf("%s: %s", method, detail), http.StatusBadRequest)
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeTyped accepts typed data as JSON or as a string holding JSON.
// Legacy v1 values keep integers exact as json.Number.
func decodeTyped(raw json.RawMessage, out any, useNumber bool) error {
	if s, ok := decodeString(raw); ok {
		raw = json.RawMessage(s)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	return dec.Decode(out)
}

// SignMessage computes the method's digest and signs it with the account key
func (w *SeedlessWallet) SignMessage(ctx context.Context, req MessageRequest) (sig string, err error) {
	defer func() { w.metrics.ObserveSignature("message", err) }()

	switch req.Method {
	case types.RPCAvalancheSignMessage:
		msg, ok := decodeString(req.Data)
		if !ok {
			return "", invalidMessage(req.Method, "data must be a string")
		}
		return w.signAvalancheMessage(ctx, req.AccountIndex, req.IsTestnet, []byte(msg))

	case types.RPCEthSign, types.RPCPersonalSign:
		msg, ok := decodeString(req.Data)
		if !ok {
			return "", invalidMessage(req.Method, "data must be a string")
		}
		return w.signEVMDigest(ctx, req.AccountIndex, signer.PersonalMessageDigest(signer.DecodeMessageData(msg)))

	case types.RPCSignTypedData, types.RPCSignTypedDataV1:
		var fields []types.TypedDataV1Field
		if err := decodeTyped(req.Data, &fields, true); err != nil {
			return "", invalidMessage(req.Method, "invalid typed data v1")
		}
		digest, err := signer.TypedDataV1Digest(fields)
		if err != nil {
			return "", err
		}
		return w.signEVMDigest(ctx, req.AccountIndex, digest)

	case types.RPCSignTypedDataV3, types.RPCSignTypedDataV4:
		var data apitypes.TypedData
		if err := decodeTyped(req.Data, &data, false); err != nil {
			return "", invalidMessage(req.Method, "invalid typed data")
		}
		digest, err := signer.TypedDataDigest(data, req.Method)
		if err != nil {
			return "", err
		}
		return w.signEVMDigest(ctx, req.AccountIndex, digest)
	}

	return "", apperrors.Unsupported(fmt.Sprintf("unknown message method %q", req.Method))
}

// signEVMDigest signs with the account's EVM key and returns r || s || v
// with v as 27 or 28.
func (w *SeedlessWallet) signEVMDigest(ctx context.Context, accountIndex int, digest []byte) (string, error) {
	address, err := w.evmAddress(accountIndex)
	if err != nil {
		return "", err
	}
	key, err := w.getSigningKeyByAddress(ctx, address)
	if err != nil {
		return "", err
	}

	sig, err := signer.SignDigest(ctx, w.session, key.KeyID, digest)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func (w *SeedlessWallet) signAvalancheMessage(ctx context.Context, accountIndex int, isTestnet bool, msg []byte) (string, error) {
	pub, err := w.publicKeyBytes(accountIndex, types.VMTypeAVM)
	if err != nil {
		return "", err
	}
	address, err := crypto.AvalancheAddress("", pub, isTestnet)
	if err != nil {
		return "", err
	}
	key, err := w.getSigningKeyByAddress(ctx, address)
	if err != nil {
		return "", err
	}
	return signer.NewAvalancheSigner(w.session, key).SignMessage(ctx, msg)
}
