package remote

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// CheckOIDCToken rejects malformed or expired identity tokens before they are
// sent to the backend. The signature is verified by the backend, not here.
func CheckOIDCToken(token string, now time.Time) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Invalid identity token", "token is empty", http.StatusUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Invalid identity token", err.Error(), http.StatusUnauthorized)
	}

	if claims.ExpiresAt == nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Invalid identity token", "missing exp claim", http.StatusUnauthorized)
	}
	if !claims.ExpiresAt.After(now) {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Invalid identity token",
			fmt.Sprintf("expired at %s", claims.ExpiresAt.UTC().Format(time.RFC3339)), http.StatusUnauthorized)
	}
	if claims.Issuer == "" || claims.Subject == "" {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeUnauthorized, "Invalid identity token", "missing iss or sub claim", http.StatusUnauthorized)
	}

	return claims, nil
}
