// Package provisioning registers new accounts with the custody backend.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/better-wallet/seedless/internal/metrics"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

const maxErrorBody = 4096

// AddAccountRequest asks the backend to derive keys for one account index
type AddAccountRequest struct {
	AccountIndex  int                  `json:"accountIndex"`
	IdentityProof *types.IdentityProof `json:"identityProof"`
	MnemonicID    string               `json:"mnemonicId"`
}

// DeriveMissingKeysRequest asks the backend to fill gaps in derived keys
type DeriveMissingKeysRequest struct {
	IdentityProof *types.IdentityProof `json:"identityProof"`
	MnemonicID    string               `json:"mnemonicId"`
}

// Client is the HTTP provisioning client
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	metrics *metrics.Metrics
}

// NewClient creates a client for the provisioning API at baseURL
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("provisioning API URL is required")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = slog.Default()
	httpClient.RetryMax = 2
	if timeout > 0 {
		httpClient.HTTPClient.Timeout = timeout
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: m,
	}, nil
}

// AddAccount derives the keys of req.AccountIndex server-side
func (c *Client) AddAccount(ctx context.Context, req AddAccountRequest) error {
	return c.post(ctx, "add_account", "/v1/addAccount", req)
}

// DeriveMissingKeys derives any keys missing below the highest account
func (c *Client) DeriveMissingKeys(ctx context.Context, req DeriveMissingKeysRequest) error {
	return c.post(ctx, "derive_missing_keys", "/v1/deriveMissingKeys", req)
}

func (c *Client) post(ctx context.Context, op, path string, body any) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRemoteCall(op, start, err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.ProvisioningFailed(resp.StatusCode, string(bytes.TrimSpace(data)))
	}
	return nil
}
