package remote

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/better-wallet/seedless/internal/metrics"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// MaxMessageSize caps a single framed enclave message
const MaxMessageSize = 10 * 1024 * 1024

// Enclave operations
const (
	OpKeys          = "keys"
	OpProveIdentity = "prove_identity"
	OpSignBlob      = "sign_blob"
	OpSignBtc       = "sign_btc"
)

// EnclaveRequest is one framed request to the enclave signer
type EnclaveRequest struct {
	Operation string `json:"operation"`
	Token     string `json:"token,omitempty"`

	KeyID         string `json:"key_id,omitempty"`
	MessageBase64 string `json:"message_base64,omitempty"`

	Address    string                `json:"address,omitempty"`
	BtcRequest *types.BtcSignRequest `json:"btc_request,omitempty"`
}

// EnclaveResponse is the enclave's framed answer
type EnclaveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Keys      []types.KeyInfo      `json:"keys,omitempty"`
	Proof     *types.IdentityProof `json:"proof,omitempty"`
	Signature string               `json:"signature,omitempty"`
}

// WriteMessage writes v as a 4-byte big-endian length followed by JSON
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(data))
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed JSON message into v
func ReadMessage(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("failed to read message length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message data: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

// EnclaveSession is a Session served by an enclave-hosted signer
type EnclaveSession struct {
	dialer  Dialer
	token   string
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewEnclaveSession creates a session over dialer
func NewEnclaveSession(dialer Dialer, token string, timeout time.Duration, m *metrics.Metrics) *EnclaveSession {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EnclaveSession{
		dialer:  dialer,
		token:   token,
		timeout: timeout,
		metrics: m,
	}
}

// Keys lists the enclave's keys
func (s *EnclaveSession) Keys(ctx context.Context) ([]types.KeyInfo, error) {
	resp, err := s.call(ctx, &EnclaveRequest{Operation: OpKeys})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// ProveIdentity returns the enclave's identity proof
func (s *EnclaveSession) ProveIdentity(ctx context.Context) (*types.IdentityProof, error) {
	resp, err := s.call(ctx, &EnclaveRequest{Operation: OpProveIdentity})
	if err != nil {
		return nil, err
	}
	if resp.Proof == nil {
		return nil, apperrors.RemoteSigningFailed("prove_identity: empty proof", nil)
	}
	return resp.Proof, nil
}

// SignBlob signs a base64 digest
func (s *EnclaveSession) SignBlob(ctx context.Context, keyID, digestB64 string) ([]byte, error) {
	resp, err := s.call(ctx, &EnclaveRequest{Operation: OpSignBlob, KeyID: keyID, MessageBase64: digestB64})
	if err != nil {
		return nil, err
	}
	return decodeSignature(resp.Signature)
}

// SignBtc signs one segwit input
func (s *EnclaveSession) SignBtc(ctx context.Context, address string, req *types.BtcSignRequest) ([]byte, error) {
	resp, err := s.call(ctx, &EnclaveRequest{Operation: OpSignBtc, Address: address, BtcRequest: req})
	if err != nil {
		return nil, err
	}
	return decodeSignature(resp.Signature)
}

func (s *EnclaveSession) call(ctx context.Context, req *EnclaveRequest) (resp *EnclaveResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRemoteCall(req.Operation, start, err) }()

	req.Token = s.token

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, apperrors.RemoteSigningFailed(fmt.Sprintf("connect to enclave (%s)", s.dialer.Platform()), err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(s.timeout))
	}

	if err := WriteMessage(conn, req); err != nil {
		return nil, err
	}

	resp = &EnclaveResponse{}
	if err := ReadMessage(conn, resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.RemoteSigningFailed(fmt.Sprintf("%s: %s", req.Operation, resp.Error), nil)
	}
	return resp, nil
}

var _ Session = (*EnclaveSession)(nil)
