package securestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewLocalSealer(t *testing.T) {
	t.Run("creates sealer with valid key", func(t *testing.T) {
		sealer, err := NewLocalSealer(testMasterKeyHex)
		require.NoError(t, err)
		assert.Equal(t, "local", sealer.Provider())
	})

	t.Run("returns error with empty key", func(t *testing.T) {
		_, err := NewLocalSealer("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "master key is required")
	})

	t.Run("returns error with short key", func(t *testing.T) {
		_, err := NewLocalSealer("0011")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("returns error with non-hex key", func(t *testing.T) {
		_, err := NewLocalSealer("not-hex")
		require.Error(t, err)
	})
}

func TestLocalSealer_EncryptDecrypt(t *testing.T) {
	sealer, err := NewLocalSealer(testMasterKeyHex)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		plaintext := []byte("encryption key material")

		ciphertext, err := sealer.Encrypt(ctx, plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := sealer.Decrypt(ctx, ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("same plaintext encrypts differently", func(t *testing.T) {
		c1, err := sealer.Encrypt(ctx, []byte("x"))
		require.NoError(t, err)
		c2, err := sealer.Encrypt(ctx, []byte("x"))
		require.NoError(t, err)
		assert.NotEqual(t, c1, c2)
	})

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		ciphertext, err := sealer.Encrypt(ctx, []byte("data"))
		require.NoError(t, err)
		ciphertext[len(ciphertext)-1] ^= 0xff

		_, err = sealer.Decrypt(ctx, ciphertext)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("short ciphertext fails", func(t *testing.T) {
		_, err := sealer.Decrypt(ctx, []byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrDecrypt)
	})
}

func TestNewSealer(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to local", func(t *testing.T) {
		sealer, err := NewSealer(ctx, &SealerConfig{LocalMasterKeyHex: testMasterKeyHex})
		require.NoError(t, err)
		assert.Equal(t, "local", sealer.Provider())
	})

	t.Run("vault requires address", func(t *testing.T) {
		_, err := NewSealer(ctx, &SealerConfig{Provider: "vault"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Vault address is required")
	})

	t.Run("aws requires key id", func(t *testing.T) {
		_, err := NewSealer(ctx, &SealerConfig{Provider: "aws-kms"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AWS KMS key ID is required")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewSealer(ctx, &SealerConfig{Provider: "gcp-kms"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sealer provider")
	})
}

type vaultTransitRequest struct {
	Plaintext  string `json:"plaintext"`
	Ciphertext string `json:"ciphertext"`
}

type vaultSecretResponse struct {
	RequestID string                 `json:"request_id"`
	Data      map[string]interface{} `json:"data"`
}

func newVaultTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req vaultTransitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var data map[string]interface{}
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/transit/encrypt/"):
			data = map[string]interface{}{"ciphertext": "vault:v1:" + req.Plaintext}
		case strings.HasPrefix(r.URL.Path, "/v1/transit/decrypt/"):
			data = map[string]interface{}{"plaintext": strings.TrimPrefix(req.Ciphertext, "vault:v1:")}
		default:
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(vaultSecretResponse{RequestID: "req", Data: data})
	}))
}

func TestVaultSealer_EncryptDecrypt_RoundTrip(t *testing.T) {
	server := newVaultTestServer(t)
	defer server.Close()

	sealer, err := NewVaultSealer(server.URL, "token", "wallet-bio")
	require.NoError(t, err)

	ctx := context.Background()
	plaintext := []byte("biometric-factor-key")

	ciphertext, err := sealer.Encrypt(ctx, plaintext)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(ciphertext), "vault:v1:"))

	decrypted, err := sealer.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestVaultSealer_Encrypt_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":["boom"]}`))
	}))
	defer server.Close()

	sealer, err := NewVaultSealer(server.URL, "token", "wallet-bio")
	require.NoError(t, err)

	_, err = sealer.Encrypt(context.Background(), []byte("data"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Vault Transit encrypt failed")
}
