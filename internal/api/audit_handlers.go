package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// handleAudit lists the wallet's audit trail (?action=, ?limit=)
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.audit == nil {
		s.writeAppError(w, apperrors.ErrUnsupportedOperation)
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			s.writeAppError(w, apperrors.NewWithDetail(
				apperrors.ErrCodeBadRequest,
				"Invalid limit",
				"limit must be between 1 and "+strconv.Itoa(maxAuditLimit),
				http.StatusBadRequest,
			))
			return
		}
		limit = n
	}

	events, err := s.audit.Recent(r.Context(), r.URL.Query().Get("action"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*types.AuditEvent{}
	}
	s.writeJSON(w, http.StatusOK, AuditResponse{Events: events})
}
