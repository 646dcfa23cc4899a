package devsigner

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/remote"
	"github.com/better-wallet/seedless/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := New(testMnemonic, false)
	require.NoError(t, err)
	return s
}

func TestNew_InvalidMnemonic(t *testing.T) {
	_, err := New("not a mnemonic", false)
	assert.Error(t, err)
}

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)

	_, err = New(m, true)
	assert.NoError(t, err)
}

func TestKeys_Account0(t *testing.T) {
	s := newTestSigner(t)

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 3)

	evm := keys[0]
	assert.Equal(t, types.KeyTypeSecpEthAddr, evm.KeyType)
	assert.Equal(t, "0x9858effd232b4033e47d90003d41ec34ecaeda94", evm.MaterialID)
	assert.Equal(t, "m/44'/60'/0'/0/0", evm.DerivationInfo.DerivationPath)
	assert.Equal(t, s.MnemonicID(), evm.DerivationInfo.MnemonicID)
	assert.True(t, evm.Enabled)

	xp := keys[1]
	assert.Equal(t, types.KeyTypeSecpAvaAddr, xp.KeyType)
	assert.True(t, strings.HasPrefix(xp.MaterialID, "avax1"))
	assert.Equal(t, "m/44'/9000'/0'/0/0", xp.DerivationInfo.DerivationPath)

	svm := keys[2]
	assert.Equal(t, types.KeyTypeEd25519SolanaAddr, svm.KeyType)
	assert.Equal(t, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk", svm.MaterialID)
	assert.Equal(t, "0xf036276246a75b9de3349ed42b15e232f6518fc20f5fcd4f1d64e81f9bd258f7", svm.PublicKey)
	assert.Equal(t, "m/44'/501'/0'/0'", svm.DerivationInfo.DerivationPath)
}

func TestKeys_TestnetUsesTestKeyType(t *testing.T) {
	s, err := New(testMnemonic, true)
	require.NoError(t, err)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, types.KeyTypeSecpAvaTestAddr, keys[1].KeyType)
	assert.True(t, strings.HasPrefix(keys[1].MaterialID, "fuji1"))
}

func TestDeriveAccount(t *testing.T) {
	s := newTestSigner(t)

	require.NoError(t, s.DeriveAccount(2))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 6)

	require.NoError(t, s.DeriveMissing())
	keys, err = s.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 9)
	assert.Equal(t, "m/44'/60'/0'/0/1", keys[3].DerivationInfo.DerivationPath)
	assert.Equal(t, "m/44'/501'/1'/0'", keys[5].DerivationInfo.DerivationPath)

	// idempotent
	require.NoError(t, s.DeriveAccount(1))
	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 9)
}

func TestSignBlob(t *testing.T) {
	s := newTestSigner(t)
	keys, err := s.Keys()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("hello"))
	sig, err := s.SignBlob(keys[0].KeyID, base64.StdEncoding.EncodeToString(digest[:]))
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := ethcrypto.Ecrecover(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, keys[0].PublicKey, "0x"+hex.EncodeToString(recovered))
}

func TestSignBlob_Ed25519(t *testing.T) {
	s := newTestSigner(t)
	keys, err := s.Keys()
	require.NoError(t, err)

	msg := []byte("solana message of any length")
	sig, err := s.SignBlob(keys[2].KeyID, base64.StdEncoding.EncodeToString(msg))
	require.NoError(t, err)
	require.Len(t, sig, ed25519.SignatureSize)

	pub, err := hex.DecodeString(strings.TrimPrefix(keys[2].PublicKey, "0x"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, msg, sig))
}

func TestSignBlob_Errors(t *testing.T) {
	s := newTestSigner(t)
	keys, err := s.Keys()
	require.NoError(t, err)
	digest := base64.StdEncoding.EncodeToString(make([]byte, 32))

	_, err = s.SignBlob("Key#missing", digest)
	assert.Error(t, err)

	_, err = s.SignBlob(keys[0].KeyID, base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)

	_, err = s.SignBlob(keys[0].KeyID, "***")
	assert.Error(t, err)

	s.SetEnabled(keys[0].KeyID, false)
	_, err = s.SignBlob(keys[0].KeyID, digest)
	assert.Error(t, err)
}

func TestProveIdentity(t *testing.T) {
	s := newTestSigner(t)
	proof := s.ProveIdentity()
	require.NotNil(t, proof.Identity)
	assert.Equal(t, s.MnemonicID(), proof.Identity.Sub)
	assert.NotEmpty(t, proof.ID)
	assert.Greater(t, proof.ExpEpoch, int64(0))
}

func TestSignBtc_Errors(t *testing.T) {
	s := newTestSigner(t)

	_, err := s.SignBtc("bc1qxyz", &types.BtcSignRequest{})
	assert.Error(t, err, "segwit sig kind is required")

	req := &types.BtcSignRequest{SigKind: types.BtcSigKind{Segwit: &types.BtcSegwitSig{Sighash: "All"}}}
	_, err = s.SignBtc("bc1qunknown", req)
	assert.Error(t, err)

	req.SigKind.Segwit.Sighash = "None"
	_, err = s.SignBtc("bc1qunknown", req)
	assert.Error(t, err)
}

func TestMsgTxFromDescriptor(t *testing.T) {
	txid := strings.Repeat("ab", 31) + "cd"
	tx, err := MsgTxFromDescriptor(&types.BtcTxDescriptor{
		Version:  2,
		LockTime: 7,
		Input:    []types.BtcTxIn{{PreviousOutput: txid + ":3", Sequence: 0xfffffffd}},
		Output:   []types.BtcTxOut{{Value: 1000, ScriptPubkey: "0014" + strings.Repeat("00", 20)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), tx.Version)
	assert.Equal(t, uint32(7), tx.LockTime)
	assert.Equal(t, txid, tx.TxIn[0].PreviousOutPoint.Hash.String())
	assert.Equal(t, uint32(3), tx.TxIn[0].PreviousOutPoint.Index)
	assert.Equal(t, int64(1000), tx.TxOut[0].Value)

	_, err = MsgTxFromDescriptor(&types.BtcTxDescriptor{Input: []types.BtcTxIn{{PreviousOutput: "nocolon"}}})
	assert.Error(t, err)
}

func TestKeyByBtcAddress(t *testing.T) {
	s := newTestSigner(t)
	keys, err := s.Keys()
	require.NoError(t, err)

	pub, err := crypto.DecodePubKeyHex(keys[0].PublicKey)
	require.NoError(t, err)
	addr, err := crypto.BtcWitnessAddress(pub, crypto.BtcParams(false))
	require.NoError(t, err)

	priv, err := s.keyByBtcAddress(addr.EncodeAddress())
	require.NoError(t, err)
	assert.Equal(t, pub, crypto.UncompressedPubKey(priv))
}

func TestHandle(t *testing.T) {
	s := newTestSigner(t)

	resp := s.Handle("secret", &remote.EnclaveRequest{Operation: remote.OpKeys, Token: "wrong"})
	assert.False(t, resp.Success)
	assert.Equal(t, "unauthorized", resp.Error)

	resp = s.Handle("secret", &remote.EnclaveRequest{Operation: remote.OpKeys, Token: "secret"})
	require.True(t, resp.Success)
	assert.Len(t, resp.Keys, 2)

	resp = s.Handle("", &remote.EnclaveRequest{Operation: remote.OpProveIdentity})
	require.True(t, resp.Success)
	assert.NotNil(t, resp.Proof)

	digest := base64.StdEncoding.EncodeToString(make([]byte, 32))
	resp = s.Handle("", &remote.EnclaveRequest{Operation: remote.OpSignBlob, KeyID: resp.Proof.ID, MessageBase64: digest})
	assert.False(t, resp.Success)

	resp = s.Handle("", &remote.EnclaveRequest{Operation: remote.OpSignBlob, KeyID: mustKeys(t, s)[0].KeyID, MessageBase64: digest})
	require.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Signature, "0x"))
	assert.Len(t, resp.Signature, 2+130)

	resp = s.Handle("", &remote.EnclaveRequest{Operation: "export"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown operation")
}

func mustKeys(t *testing.T, s *Signer) []types.KeyInfo {
	t.Helper()
	keys, err := s.Keys()
	require.NoError(t, err)
	return keys
}
