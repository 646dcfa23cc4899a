package app

import (
	"context"
	"fmt"
	"time"

	"github.com/better-wallet/seedless/internal/devsigner"
	"github.com/better-wallet/seedless/internal/metrics"
	"github.com/better-wallet/seedless/internal/remote"
)

// RemoteConfig selects how sessions reach the custody backend
type RemoteConfig struct {
	Transport string // http, enclave or local
	IsTestnet bool

	// HTTP transport; the secret's api_url and org_id win when set
	APIURL    string
	OrgID     string
	Timeout   time.Duration
	RateLimit float64

	// Enclave transport
	Dialer remote.Dialer
}

// NewSessionFactory returns the SessionFactory for cfg. An HTTP secret
// without a session token but with an OIDC token logs in first. The local
// transport signs in process from a mnemonic secret and is meant for
// development only.
func NewSessionFactory(cfg RemoteConfig, m *metrics.Metrics) (SessionFactory, error) {
	switch cfg.Transport {
	case "http":
		return func(ctx context.Context, secret *remote.SessionSecret) (remote.Session, error) {
			httpCfg := remote.HTTPConfig{
				BaseURL:   firstNonEmpty(secret.APIURL, cfg.APIURL),
				OrgID:     firstNonEmpty(secret.OrgID, cfg.OrgID),
				Token:     secret.Token,
				Timeout:   cfg.Timeout,
				RetryMax:  2,
				RateLimit: cfg.RateLimit,
			}
			if secret.Token == "" && secret.OIDCToken != "" {
				return remote.Login(ctx, httpCfg, secret.OIDCToken, m)
			}
			return remote.NewHTTPSession(httpCfg, m)
		}, nil

	case "enclave":
		if cfg.Dialer == nil {
			return nil, fmt.Errorf("enclave transport requires a dialer")
		}
		return func(ctx context.Context, secret *remote.SessionSecret) (remote.Session, error) {
			if secret.Token == "" {
				return nil, fmt.Errorf("wallet secret has no enclave token")
			}
			return remote.NewEnclaveSession(cfg.Dialer, secret.Token, cfg.Timeout, m), nil
		}, nil

	case "local":
		return func(ctx context.Context, secret *remote.SessionSecret) (remote.Session, error) {
			if secret.Mnemonic == "" {
				return nil, fmt.Errorf("wallet secret has no mnemonic for the local signer")
			}
			signer, err := devsigner.New(secret.Mnemonic, cfg.IsTestnet)
			if err != nil {
				return nil, err
			}
			return devsigner.NewSession(signer), nil
		}, nil

	default:
		return nil, fmt.Errorf("unsupported signer transport: %s", cfg.Transport)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
