package api

import (
	"net/http"
	"strconv"

	"github.com/better-wallet/seedless/internal/validation"
	"github.com/better-wallet/seedless/internal/wallet"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// handleUnlock runs the migration gate and opens the wallet
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req UnlockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateAccessType(req.AccessType); err != nil {
		s.writeAppError(w, badRequest("Invalid access type", err))
		return
	}
	if req.AccessType == types.AccessTypePIN {
		if err := validation.ValidatePIN(req.PIN); err != nil {
			s.writeAppError(w, apperrors.BadPin(err.Error()))
			return
		}
	} else {
		req.PIN = ""
	}

	unlocked, err := s.walletService.Unlock(r.Context(), req.AccessType, req.PIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	addrs, err := unlocked.GetAddresses(0, s.config.IsTestnet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UnlockResponse{
		AccountCount: unlocked.AccountCount(),
		Addresses:    addrs,
	})
}

// handleLock drops the active wallet
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	s.walletService.Lock()
	w.WriteHeader(http.StatusNoContent)
}

// handleMigrationStatus reports what an unlock with access_type would migrate
func (s *Server) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	access := types.AccessType(r.URL.Query().Get("access_type"))
	if access == "" {
		access = types.AccessTypePIN
	}

	status, err := s.walletService.MigrationStatus(r.Context(), access)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := s.walletService.KeychainState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MigrationStatusResponse{
		AccessType:      access,
		MigrationStatus: status,
		KeychainState:   state,
	})
}

// handleAddresses lists addresses for one account (?account_index=) or all
func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	active, err := s.walletService.Wallet()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	indices := make([]int, 0, active.AccountCount())
	if raw := r.URL.Query().Get("account_index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			s.writeAppError(w, badRequest("Invalid account index", err))
			return
		}
		indices = append(indices, idx)
	} else {
		for i := 0; i < active.AccountCount(); i++ {
			indices = append(indices, i)
		}
	}

	resp := AddressesResponse{Accounts: make([]AccountAddresses, 0, len(indices))}
	for _, idx := range indices {
		addrs, err := active.GetAddresses(idx, s.config.IsTestnet)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Accounts = append(resp.Accounts, AccountAddresses{AccountIndex: idx, Addresses: addrs})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAccounts provisions a new account or derives missing keys
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req AccountsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var (
		updated *wallet.SeedlessWallet
		err     error
	)
	switch {
	case req.DeriveMissing:
		updated, err = s.walletService.DeriveMissingKeys(r.Context())
	case req.AccountIndex != nil:
		if *req.AccountIndex < 1 {
			s.writeAppError(w, apperrors.AccountIndex(*req.AccountIndex))
			return
		}
		if verr := validation.ValidateAccountIndex(*req.AccountIndex); verr != nil {
			s.writeAppError(w, badRequest("Invalid account index", verr))
			return
		}
		updated, err = s.walletService.AddAccount(r.Context(), *req.AccountIndex)
	default:
		s.writeAppError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request body",
			"account_index or derive_missing is required",
			http.StatusBadRequest,
		))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AccountsResponse{AccountCount: updated.AccountCount()})
}
