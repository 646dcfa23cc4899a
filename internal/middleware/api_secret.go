package middleware

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/better-wallet/seedless/internal/logger"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// APISecretHeader carries the shared secret local clients present
const APISecretHeader = "X-API-Secret"

// APISecretAuth rejects requests whose X-API-Secret does not match the bcrypt hash.
// An empty hash disables the check.
func APISecretAuth(secretHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secretHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" && r.Header.Get(APISecretHeader) == "" {
				WriteError(w, apperrors.NewWithDetail(
					apperrors.ErrCodeUnauthorized,
					"Authorization header is not supported",
					"Use "+APISecretHeader,
					http.StatusUnauthorized,
				))
				return
			}

			secret := r.Header.Get(APISecretHeader)
			if secret == "" {
				WriteError(w, apperrors.NewWithDetail(
					apperrors.ErrCodeUnauthorized,
					"Missing API secret",
					"Provide "+APISecretHeader,
					http.StatusUnauthorized,
				))
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)); err != nil {
				logger.Warn(r.Context(), "rejected request with invalid API secret",
					"path", r.URL.Path,
					"remote_addr", getIP(r),
				)
				WriteError(w, apperrors.New(
					apperrors.ErrCodeUnauthorized,
					"Invalid API secret",
					http.StatusUnauthorized,
				))
				return
			}

			StripCredentialHeaders(r.Header)
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as the JSON error body with its status code
func WriteError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}
