package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

func secretHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func decodeAppError(t *testing.T, rr *httptest.ResponseRecorder) apperrors.AppError {
	t.Helper()
	var body apperrors.AppError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAPISecretAuth(t *testing.T) {
	hash := secretHash(t, "local-client-secret")

	var seenSecret string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSecret = r.Header.Get(APISecretHeader)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := APISecretAuth(hash)(next)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "valid secret",
			headers:    map[string]string{APISecretHeader: "local-client-secret"},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "missing secret",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Missing API secret",
		},
		{
			name:       "wrong secret",
			headers:    map[string]string{APISecretHeader: "guess"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid API secret",
		},
		{
			name:       "authorization header alone",
			headers:    map[string]string{"Authorization": "Bearer abc"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authorization header is not supported",
		},
		{
			name: "authorization header alongside secret",
			headers: map[string]string{
				"Authorization": "Bearer abc",
				APISecretHeader: "local-client-secret",
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenSecret = "unset"
			req := httptest.NewRequest(http.MethodGet, "/v1/addresses", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantMsg != "" {
				body := decodeAppError(t, rr)
				assert.Equal(t, apperrors.ErrCodeUnauthorized, body.Code)
				assert.Equal(t, tt.wantMsg, body.Message)
				assert.Equal(t, "unset", seenSecret)
				return
			}
			// The secret is stripped before the handler runs
			assert.Empty(t, seenSecret)
		})
	}
}

func TestAPISecretAuth_EmptyHashDisablesCheck(t *testing.T) {
	called := false
	handler := APISecretAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/addresses", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}
