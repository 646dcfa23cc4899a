package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/config"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/metrics"
	"github.com/better-wallet/seedless/internal/middleware"
	"github.com/better-wallet/seedless/internal/validation"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// Server represents the HTTP server
type Server struct {
	config        *config.Config
	walletService WalletService
	txFiller      TxFiller
	txValidation  *validation.TransactionValidationConfig
	metrics       *metrics.Metrics
	rateLimiter   *middleware.RateLimiter
	audit         *audit.Recorder
	httpServer    *http.Server
}

// NewServer creates a new API server. txFiller may be nil, in which case
// EVM requests must carry every fee and nonce field.
func NewServer(
	cfg *config.Config,
	walletService WalletService,
	txFiller TxFiller,
	m *metrics.Metrics,
) *Server {
	return &Server{
		config:        cfg,
		walletService: walletService,
		txFiller:      txFiller,
		txValidation:  &validation.TransactionValidationConfig{MaxDataSize: middleware.MaxBodySize / 2},
		metrics:       m,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, true),
	}
}

// SetAuditRecorder makes signing requests part of the audit trail and
// serves it under /v1/audit
func (s *Server) SetAuditRecorder(r *audit.Recorder) {
	s.audit = r
}

// Handler builds the routed handler with the middleware chain applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	auth := middleware.APISecretAuth(s.config.APISecretHash)
	route := func(path string, h http.HandlerFunc) {
		mux.Handle(path, auth(h))
	}

	route("/v1/unlock", s.handleUnlock)
	route("/v1/lock", s.handleLock)
	route("/v1/migration-status", s.handleMigrationStatus)
	route("/v1/pin", s.handleChangePin)
	route("/v1/pin/verify", s.handleVerifyPin)
	route("/v1/biometry", s.handleBiometry)
	route("/v1/keychain", s.handleResetKeychain)
	route("/v1/addresses", s.handleAddresses)
	route("/v1/accounts", s.handleAccounts)
	route("/v1/sign/message", s.handleSignMessage)
	route("/v1/sign/evm", s.handleSignEvm)
	route("/v1/sign/avalanche", s.handleSignAvalanche)
	route("/v1/sign/btc", s.handleSignBtc)
	route("/v1/sign/solana", s.handleSignSolana)
	route("/v1/audit", s.handleAudit)

	// Chain: RequestID -> AuditContext -> Logging -> RateLimit -> LimitBody -> Routes
	return middleware.RequestID(
		middleware.AuditContext(
			middleware.Logging(
				s.rateLimiter.Limit(
					middleware.LimitBody(middleware.MaxBodySize)(mux)))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.SignerTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.walletService.Wallet()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		WalletID: s.config.WalletID,
		Unlocked: err == nil,
	})
}

// allowMethod writes a 405 and returns false unless r uses one of methods
func (s *Server) allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	s.writeAppError(w, apperrors.New(
		apperrors.ErrCodeBadRequest,
		"Method not allowed",
		http.StatusMethodNotAllowed,
	))
	return false
}

// decodeBody decodes the JSON request body into v, rejecting unknown fields
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeAppError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request body",
			err.Error(),
			http.StatusBadRequest,
		))
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAppError writes an error response
func (s *Server) writeAppError(w http.ResponseWriter, err *apperrors.AppError) {
	middleware.WriteError(w, err)
}

// writeError maps err to its AppError body. Untyped errors are logged and
// reported as internal errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		s.writeAppError(w, appErr)
		return
	}
	logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	s.writeAppError(w, apperrors.ErrInternalError)
}

// badRequest wraps a validation failure
func badRequest(message string, err error) *apperrors.AppError {
	return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, message, err.Error(), http.StatusBadRequest)
}
