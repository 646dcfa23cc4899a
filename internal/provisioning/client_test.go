package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/seedless/internal/metrics"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("", 0, nil)
	assert.Error(t, err)
}

func TestAddAccount(t *testing.T) {
	var got AddAccountRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/addAccount", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	m := metrics.New()
	client, err := NewClient(server.URL+"/", 0, m)
	require.NoError(t, err)

	proof := &types.IdentityProof{ID: "proof-1", ExpEpoch: 1700000000}
	err = client.AddAccount(context.Background(), AddAccountRequest{AccountIndex: 2, IdentityProof: proof, MnemonicID: "MnemonicId#1"})
	require.NoError(t, err)

	assert.Equal(t, 2, got.AccountIndex)
	assert.Equal(t, "MnemonicId#1", got.MnemonicID)
	require.NotNil(t, got.IdentityProof)
	assert.Equal(t, "proof-1", got.IdentityProof.ID)
}

func TestAddAccount_WireFormat(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0, nil)
	require.NoError(t, err)
	require.NoError(t, client.AddAccount(context.Background(), AddAccountRequest{AccountIndex: 1, MnemonicID: "m"}))

	assert.Contains(t, raw, "accountIndex")
	assert.Contains(t, raw, "identityProof")
	assert.Contains(t, raw, "mnemonicId")
}

func TestAddAccount_NonSuccessStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"identity proof expired"}` + "\n"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0, nil)
	require.NoError(t, err)

	err = client.AddAccount(context.Background(), AddAccountRequest{AccountIndex: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ErrCodeProvisioningFailed, "", 0))

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Detail, "status 403")
	assert.Contains(t, appErr.Detail, "identity proof expired")
	assert.Equal(t, int32(1), hits.Load(), "4xx is not retried")
}

func TestDeriveMissingKeys(t *testing.T) {
	var path string
	var got DeriveMissingKeysRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0, nil)
	require.NoError(t, err)

	err = client.DeriveMissingKeys(context.Background(), DeriveMissingKeysRequest{MnemonicID: "MnemonicId#1"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/deriveMissingKeys", path)
	assert.Equal(t, "MnemonicId#1", got.MnemonicID)
}
