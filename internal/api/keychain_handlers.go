package api

import (
	"net/http"

	"github.com/better-wallet/seedless/internal/validation"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// handleVerifyPin reports whether a PIN opens the keychain without unlocking
func (s *Server) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req PinRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidatePIN(req.PIN); err != nil {
		s.writeAppError(w, apperrors.BadPin(err.Error()))
		return
	}

	correct, err := s.walletService.VerifyPin(r.Context(), req.PIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, VerifyPinResponse{Correct: correct})
}

// handleChangePin re-encrypts the PIN copy of the encryption key
func (s *Server) handleChangePin(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req ChangePinRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	for _, pin := range []string{req.OldPIN, req.NewPIN} {
		if err := validation.ValidatePIN(pin); err != nil {
			s.writeAppError(w, apperrors.BadPin(err.Error()))
			return
		}
	}

	if err := s.walletService.ChangePin(r.Context(), req.OldPIN, req.NewPIN); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBiometry enables (POST, PIN required) or disables (DELETE) biometric access
func (s *Server) handleBiometry(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}

	var err error
	if r.Method == http.MethodDelete {
		err = s.walletService.DisableBiometry(r.Context())
	} else {
		var req PinRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if verr := validation.ValidatePIN(req.PIN); verr != nil {
			s.writeAppError(w, apperrors.BadPin(verr.Error()))
			return
		}
		err = s.walletService.EnableBiometry(r.Context(), req.PIN)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetKeychain erases every stored copy of the wallet and locks it
func (s *Server) handleResetKeychain(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodDelete) {
		return
	}
	if err := s.walletService.Reset(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
