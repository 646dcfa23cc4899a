package devsigner

import (
	"encoding/hex"

	"github.com/better-wallet/seedless/internal/remote"
)

// Handle answers one enclave protocol request. token, when set, must match
// the request's token.
func (s *Signer) Handle(token string, req *remote.EnclaveRequest) *remote.EnclaveResponse {
	if token != "" && req.Token != token {
		return &remote.EnclaveResponse{Error: "unauthorized"}
	}

	switch req.Operation {
	case remote.OpKeys:
		keys, err := s.Keys()
		if err != nil {
			return &remote.EnclaveResponse{Error: err.Error()}
		}
		return &remote.EnclaveResponse{Success: true, Keys: keys}

	case remote.OpProveIdentity:
		return &remote.EnclaveResponse{Success: true, Proof: s.ProveIdentity()}

	case remote.OpSignBlob:
		sig, err := s.SignBlob(req.KeyID, req.MessageBase64)
		if err != nil {
			return &remote.EnclaveResponse{Error: err.Error()}
		}
		return &remote.EnclaveResponse{Success: true, Signature: "0x" + hex.EncodeToString(sig)}

	case remote.OpSignBtc:
		sig, err := s.SignBtc(req.Address, req.BtcRequest)
		if err != nil {
			return &remote.EnclaveResponse{Error: err.Error()}
		}
		return &remote.EnclaveResponse{Success: true, Signature: "0x" + hex.EncodeToString(sig)}

	default:
		return &remote.EnclaveResponse{Error: "unknown operation: " + req.Operation}
	}
}
