package devsigner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/provisioning"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

const connDeadline = 30 * time.Second

// Serve answers enclave protocol requests on ln until ctx is done or ln
// fails. Each connection carries one request and one response.
func (s *Signer) Serve(ctx context.Context, ln net.Listener, token string) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go s.handleConn(ctx, conn, token)
	}
}

func (s *Signer) handleConn(ctx context.Context, conn net.Conn, token string) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connDeadline))

	var req remote.EnclaveRequest
	if err := remote.ReadMessage(conn, &req); err != nil {
		logger.Warn(ctx, "failed to read enclave request", "error", err)
		_ = remote.WriteMessage(conn, &remote.EnclaveResponse{Error: "invalid request"})
		return
	}

	resp := s.Handle(token, &req)
	if !resp.Success {
		logger.Warn(ctx, "enclave request failed", "operation", req.Operation, "error", resp.Error)
	} else {
		logger.Debug(ctx, "enclave request served", "operation", req.Operation)
	}

	if err := remote.WriteMessage(conn, resp); err != nil {
		logger.Warn(ctx, "failed to write enclave response", "error", err)
	}
}

// ProvisioningHandler serves the account provisioning API for this signer
func (s *Signer) ProvisioningHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/addAccount", func(w http.ResponseWriter, r *http.Request) {
		var req provisioning.AddAccountRequest
		if !decodeProvisioning(w, r, &req) {
			return
		}
		if err := s.checkProvisioning(req.IdentityProof, req.MnemonicID); err != nil {
			writeProvisioningError(w, err)
			return
		}
		if req.AccountIndex < 0 {
			writeProvisioningError(w, apperrors.AccountIndex(req.AccountIndex))
			return
		}
		if err := s.DeriveAccount(uint32(req.AccountIndex)); err != nil {
			writeProvisioningError(w, derivationFailed(err))
			return
		}
		logger.Info(r.Context(), "account derived", "account_index", req.AccountIndex)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/deriveMissingKeys", func(w http.ResponseWriter, r *http.Request) {
		var req provisioning.DeriveMissingKeysRequest
		if !decodeProvisioning(w, r, &req) {
			return
		}
		if err := s.checkProvisioning(req.IdentityProof, req.MnemonicID); err != nil {
			writeProvisioningError(w, err)
			return
		}
		if err := s.DeriveMissing(); err != nil {
			writeProvisioningError(w, derivationFailed(err))
			return
		}
		logger.Info(r.Context(), "missing keys derived")
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// checkProvisioning requires a live identity proof for this signer's mnemonic
func (s *Signer) checkProvisioning(proof *types.IdentityProof, mnemonicID string) *apperrors.AppError {
	if proof == nil || proof.ExpEpoch <= time.Now().Unix() {
		return apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Identity proof required", "missing or expired proof", http.StatusUnauthorized)
	}
	if mnemonicID != s.mnemonicID {
		return apperrors.MnemonicIDNotFound(mnemonicID)
	}
	return nil
}

func decodeProvisioning(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeProvisioningError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Method not allowed", http.StatusMethodNotAllowed))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProvisioningError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request body", err.Error(), http.StatusBadRequest))
		return false
	}
	return true
}

func derivationFailed(err error) *apperrors.AppError {
	return apperrors.NewWithDetail(apperrors.ErrCodeInternalError, "Derivation failed", err.Error(), http.StatusInternalServerError)
}

func writeProvisioningError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}
