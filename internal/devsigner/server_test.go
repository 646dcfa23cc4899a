package devsigner

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/seedless/internal/provisioning"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

func startSigner(t *testing.T, s *Signer, token string) uint32 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, token) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not stop")
		}
	})
	return uint32(ln.Addr().(*net.TCPAddr).Port)
}

func TestServe_EnclaveProtocol(t *testing.T) {
	s := newTestSigner(t)
	port := startSigner(t, s, "dev-token")
	ctx := context.Background()

	sess := remote.NewEnclaveSession(remote.NewDevTCPDialer(port, time.Second), "dev-token", 5*time.Second, nil)

	keys, err := sess.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	proof, err := sess.ProveIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.MnemonicID(), proof.Identity.Sub)

	digest := make([]byte, 32)
	digest[0] = 1
	sig, err := sess.SignBlob(ctx, keys[0].KeyID, base64.StdEncoding.EncodeToString(digest))
	require.NoError(t, err)
	assert.Len(t, sig, 65)

	bad := remote.NewEnclaveSession(remote.NewDevTCPDialer(port, time.Second), "wrong", 5*time.Second, nil)
	_, err = bad.Keys(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestServe_GarbageRequest(t *testing.T) {
	port := startSigner(t, newTestSigner(t), "")

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0, 0, 0, 3, 'x', 'y', 'z'})
	require.NoError(t, err)

	var resp remote.EnclaveResponse
	require.NoError(t, remote.ReadMessage(conn, &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid request", resp.Error)
}

func TestProvisioningHandler(t *testing.T) {
	s := newTestSigner(t)
	srv := httptest.NewServer(s.ProvisioningHandler())
	defer srv.Close()

	client, err := provisioning.NewClient(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	ctx := context.Background()
	proof := s.ProveIdentity()

	require.NoError(t, client.AddAccount(ctx, provisioning.AddAccountRequest{
		AccountIndex:  2,
		IdentityProof: proof,
		MnemonicID:    s.MnemonicID(),
	}))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 6, "accounts 0 and 2")

	require.NoError(t, client.DeriveMissingKeys(ctx, provisioning.DeriveMissingKeysRequest{
		IdentityProof: proof,
		MnemonicID:    s.MnemonicID(),
	}))
	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 9)

	err = client.AddAccount(ctx, provisioning.AddAccountRequest{AccountIndex: 3, IdentityProof: proof, MnemonicID: "MnemonicId#other"})
	assertProvisioningFailed(t, err, "status 404")

	expired := *proof
	expired.ExpEpoch = time.Now().Add(-time.Minute).Unix()
	err = client.DeriveMissingKeys(ctx, provisioning.DeriveMissingKeysRequest{IdentityProof: &expired, MnemonicID: s.MnemonicID()})
	assertProvisioningFailed(t, err, "status 401")
}

func TestProvisioningHandler_RejectsGet(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestSigner(t).ProvisioningHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/addAccount", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func assertProvisioningFailed(t *testing.T, err error, detail string) {
	t.Helper()
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeProvisioningFailed, appErr.Code)
	assert.Contains(t, appErr.Detail, detail)
}
