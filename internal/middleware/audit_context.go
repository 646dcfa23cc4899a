package middleware

import (
	"context"
	"net/http"
)

type auditKey int

const (
	clientIPKey auditKey = iota
	userAgentKey
)

// AuditContext stores the caller's address and user agent for the audit trail
func AuditContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := getIP(r); ip != "" {
			ctx = context.WithValue(ctx, clientIPKey, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = context.WithValue(ctx, userAgentKey, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP returns the caller address recorded by AuditContext, or nil
func GetClientIP(ctx context.Context) *string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return &ip
	}
	return nil
}

// GetUserAgent returns the User-Agent recorded by AuditContext, or nil
func GetUserAgent(ctx context.Context) *string {
	if ua, ok := ctx.Value(userAgentKey).(string); ok {
		return &ua
	}
	return nil
}
