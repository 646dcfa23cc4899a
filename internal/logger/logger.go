// Package logger configures log/slog for the daemon and carries request and
// wallet ids through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	walletIDKey  contextKey = "wallet_id"
)

const redacted = "[REDACTED]"

// secretKeys are attribute keys whose values never reach a log sink
var secretKeys = map[string]bool{
	"pin":            true,
	"old_pin":        true,
	"new_pin":        true,
	"mnemonic":       true,
	"secret":         true,
	"wallet_secret":  true,
	"token":          true,
	"oidc_token":     true,
	"encryption_key": true,
	"private_key":    true,
}

// Init installs the default logger from LOG_FORMAT ("json" default, "text")
// and LOG_LEVEL ("DEBUG", "INFO" default, "WARN", "ERROR").
func Init() error {
	l, err := New(os.Stdout, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	return nil
}

// New builds a logger writing to w. Empty format and level select the
// defaults. Attributes named like secrets are replaced before encoding.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	if level == "" {
		level = "INFO"
	}
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %s (must be DEBUG, INFO, WARN, or ERROR)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: scrubSecrets}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", format)
	}
}

func scrubSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID in ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithWalletID adds the wallet being unlocked or signed for to the context.
func WithWalletID(ctx context.Context, walletID string) context.Context {
	return context.WithValue(ctx, walletIDKey, walletID)
}

// GetWalletID returns the wallet ID in ctx, or "".
func GetWalletID(ctx context.Context) string {
	id, _ := ctx.Value(walletIDKey).(string)
	return id
}

// FromContext returns the default logger with the request and wallet IDs of ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := GetRequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if id := GetWalletID(ctx); id != "" {
		l = l.With("wallet_id", id)
	}
	return l
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Error(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}
