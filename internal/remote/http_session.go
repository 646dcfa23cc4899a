package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/better-wallet/seedless/internal/metrics"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// maxResponseBytes bounds backend response bodies
const maxResponseBytes = 1 << 20

// HTTPConfig configures an HTTPSession
type HTTPConfig struct {
	BaseURL string
	OrgID   string
	Token   string

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration

	// RateLimit caps requests per second; 0 disables limiting
	RateLimit float64
}

// HTTPSession is a Session over the custody backend's REST API
type HTTPSession struct {
	client  *retryablehttp.Client
	baseURL string
	orgID   string
	token   string
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

func newRetryClient(cfg HTTPConfig) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = slog.Default()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
		client.RetryWaitMax = cfg.RetryWaitMin * 4
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	return client
}

// NewHTTPSession creates a session authenticated with a session token
func NewHTTPSession(cfg HTTPConfig, m *metrics.Metrics) (*HTTPSession, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("custody API URL is required")
	}
	if cfg.OrgID == "" {
		return nil, fmt.Errorf("custody org ID is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("session token is required")
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &HTTPSession{
		client:  newRetryClient(cfg),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		orgID:   cfg.OrgID,
		token:   cfg.Token,
		limiter: limiter,
		metrics: m,
	}, nil
}

// Login exchanges an OIDC token for a session token and returns the session
func Login(ctx context.Context, cfg HTTPConfig, oidcToken string, m *metrics.Metrics) (*HTTPSession, error) {
	if _, err := CheckOIDCToken(oidcToken, time.Now()); err != nil {
		return nil, err
	}

	s := &HTTPSession{
		client:  newRetryClient(cfg),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		orgID:   cfg.OrgID,
		token:   oidcToken,
		metrics: m,
	}

	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"scopes": []string{"sign:*", "manage:*"}}
	if err := s.do(ctx, "oidc_login", http.MethodPost, s.orgPath("v0", "oidc"), body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response has no session token")
	}

	cfg.Token = resp.Token
	return NewHTTPSession(cfg, m)
}

func (s *HTTPSession) orgPath(version string, parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/org/%s/%s", s.baseURL, version, url.PathEscape(s.orgID), strings.Join(escaped, "/"))
}

// Keys lists the session's keys
func (s *HTTPSession) Keys(ctx context.Context) ([]types.KeyInfo, error) {
	var resp struct {
		Keys []types.KeyInfo `json:"keys"`
	}
	if err := s.do(ctx, "keys", http.MethodGet, s.orgPath("v0", "token", "keys"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// ProveIdentity asks the backend for an identity proof
func (s *HTTPSession) ProveIdentity(ctx context.Context) (*types.IdentityProof, error) {
	var proof types.IdentityProof
	if err := s.do(ctx, "prove_identity", http.MethodPost, s.orgPath("v0", "identity", "prove"), struct{}{}, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// SignBlob signs a base64 encoded digest with keyID
func (s *HTTPSession) SignBlob(ctx context.Context, keyID, digestB64 string) ([]byte, error) {
	var resp signatureResponse
	body := map[string]string{"message_base64": digestB64}
	if err := s.do(ctx, "sign_blob", http.MethodPost, s.orgPath("v1", "blob", "sign", keyID), body, &resp); err != nil {
		return nil, err
	}
	return decodeSignature(resp.Signature)
}

// SignBtc signs one segwit input with the key behind address
func (s *HTTPSession) SignBtc(ctx context.Context, address string, req *types.BtcSignRequest) ([]byte, error) {
	var resp signatureResponse
	if err := s.do(ctx, "sign_btc", http.MethodPost, s.orgPath("v0", "btc", "sign", address), req, &resp); err != nil {
		return nil, err
	}
	return decodeSignature(resp.Signature)
}

func (s *HTTPSession) do(ctx context.Context, op, method, endpoint string, body, out any) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRemoteCall(op, start, err) }()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", op, err)
		}
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", s.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.RemoteSigningFailed(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.RemoteSigningFailed(fmt.Sprintf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(data)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

var _ Session = (*HTTPSession)(nil)
