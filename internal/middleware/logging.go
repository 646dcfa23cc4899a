package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/better-wallet/seedless/internal/logger"
)

const redactedValue = "[REDACTED]"

// credentialHeaders maps each sensitive header to whether it is removed
// once the API secret has been checked
var credentialHeaders = map[string]bool{
	"Authorization":                          true,
	http.CanonicalHeaderKey(APISecretHeader): true,
	"Cookie":                                 false,
	"Set-Cookie":                             false,
}

// RedactHeaders returns a copy of h that is safe to log. Authorization keeps
// its scheme.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := h.Clone()
	for key, values := range out {
		if _, sensitive := credentialHeaders[http.CanonicalHeaderKey(key)]; !sensitive {
			continue
		}
		for i, v := range values {
			values[i] = redactedValue
			if scheme, _, ok := strings.Cut(strings.TrimSpace(v), " "); ok && scheme != "" && strings.EqualFold(key, "Authorization") {
				values[i] = scheme + " " + redactedValue
			}
		}
	}
	return out
}

// StripCredentialHeaders removes the API secret and bearer credentials from h
func StripCredentialHeaders(h http.Header) {
	for key, strip := range credentialHeaders {
		if strip {
			h.Del(key)
		}
	}
}

// statusRecorder captures the status and body size written by a handler.
// Only the first WriteHeader counts.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.written {
		return
	}
	r.status = code
	r.written = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging logs one line per request with its status, size and latency.
// Headers are logged at debug level with credentials redacted.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger.Debug(ctx, "request started",
			"method", r.Method,
			"path", r.URL.Path,
			"headers", RedactHeaders(r.Header),
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", args...)
			return
		}
		logger.Info(ctx, "request completed", args...)
	})
}
