package signer

import (
	"context"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/hashing"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
	"github.com/better-wallet/seedless/tests/mocks"
)

func xpAddress(t *testing.T, session *mocks.MockSession, key types.KeyInfo) ids.ShortID {
	t.Helper()
	kc, err := NewRemoteKeychain(context.Background(), session, key)
	require.NoError(t, err)
	return kc.Address()
}

func TestParseAvalancheTx(t *testing.T) {
	spend, err := mocks.NewAvalancheSpend(types.VMTypePVM, ids.ShortID{1})
	require.NoError(t, err)

	tx, err := ParseAvalancheTx(types.VMTypePVM, spend.Tx, spend.UTXOs)
	require.NoError(t, err)
	assert.Equal(t, types.VMTypePVM, tx.VM())
	assert.NotEqual(t, ids.Empty, tx.ID())

	_, err = ParseAvalancheTx(types.VMTypeBitcoin, spend.Tx, nil)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ErrCodeChainNotSupported, "", 0))

	_, err = ParseAvalancheTx(types.VMTypeEVM, spend.Tx, nil)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ErrCodeChainNotSupported, "", 0))

	_, err = ParseAvalancheTx(types.VMTypeAVM, "0x0102", nil)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest, "checksum is required")

	garbage, err := formatting.Encode(formatting.Hex, []byte("not a codec payload"))
	require.NoError(t, err)
	_, err = ParseAvalancheTx(types.VMTypePVM, garbage, nil)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = ParseAvalancheTx(types.VMTypePVM, spend.Tx, []string{garbage})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestKeyTypeSignsFor(t *testing.T) {
	tests := []struct {
		keyType types.KeyType
		vm      types.VMType
		want    bool
	}{
		{types.KeyTypeSecpEthAddr, types.VMTypeEVM, true},
		{types.KeyTypeSecpEthAddr, types.VMTypeAVM, false},
		{types.KeyTypeSecpAvaAddr, types.VMTypeAVM, true},
		{types.KeyTypeSecpAvaTestAddr, types.VMTypePVM, true},
		{types.KeyTypeSecpAvaAddr, types.VMTypeEVM, false},
		{types.KeyTypeSecpBtc, types.VMTypeBitcoin, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyTypeSignsFor(tt.keyType, tt.vm), "%s/%s", tt.keyType, tt.vm)
	}
}

func TestAvalancheSigner_SignTx(t *testing.T) {
	for _, vm := range []types.VMType{types.VMTypeAVM, types.VMTypePVM} {
		t.Run(string(vm), func(t *testing.T) {
			session := mocks.NewMockSession(false)
			_, xpKey := testKeys(t, session)
			owner := xpAddress(t, session, xpKey)

			spend, err := mocks.NewAvalancheSpend(vm, owner, owner)
			require.NoError(t, err)
			tx, err := ParseAvalancheTx(vm, spend.Tx, spend.UTXOs)
			require.NoError(t, err)

			out, err := NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
			require.NoError(t, err)

			unsigned, creds, err := mocks.AvalancheCredentials(vm, out)
			require.NoError(t, err)
			assert.Equal(t, spend.UnsignedBytes, unsigned)
			require.Len(t, creds, 2)
			for _, sigs := range creds {
				require.Len(t, sigs, 1)
				recovered, err := ethcrypto.Ecrecover(hashing.ComputeHash256(unsigned), sigs[0][:])
				require.NoError(t, err)
				assert.Equal(t, pubKeyOf(t, xpKey), recovered)
			}
			// one remote signature is reused for every input of the same key
			assert.Equal(t, 1, session.CallCount("SignBlob"))
		})
	}
}

func TestAvalancheSigner_SkipsInputsOfOtherOwners(t *testing.T) {
	session := mocks.NewMockSession(false)
	_, xpKey := testKeys(t, session)
	owner := xpAddress(t, session, xpKey)

	spend, err := mocks.NewAvalancheSpend(types.VMTypePVM, ids.ShortID{9}, owner)
	require.NoError(t, err)
	tx, err := ParseAvalancheTx(types.VMTypePVM, spend.Tx, spend.UTXOs)
	require.NoError(t, err)

	out, err := NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
	require.NoError(t, err)

	_, creds, err := mocks.AvalancheCredentials(types.VMTypePVM, out)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, [65]byte{}, creds[0][0], "foreign input stays unsigned")
	assert.NotEqual(t, [65]byte{}, creds[1][0])
}

func TestAvalancheSigner_NothingToSign(t *testing.T) {
	session := mocks.NewMockSession(false)
	_, xpKey := testKeys(t, session)
	owner := xpAddress(t, session, xpKey)

	foreign, err := mocks.NewAvalancheSpend(types.VMTypeAVM, ids.ShortID{9})
	require.NoError(t, err)
	tx, err := ParseAvalancheTx(types.VMTypeAVM, foreign.Tx, foreign.UTXOs)
	require.NoError(t, err)
	_, err = NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
	assert.ErrorIs(t, err, apperrors.ErrSigningKeyNotFound)

	// without the spent UTXOs no input can be attributed to the key
	own, err := mocks.NewAvalancheSpend(types.VMTypeAVM, owner)
	require.NoError(t, err)
	tx, err = ParseAvalancheTx(types.VMTypeAVM, own.Tx, nil)
	require.NoError(t, err)
	_, err = NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
	assert.ErrorIs(t, err, apperrors.ErrSigningKeyNotFound)

	assert.Zero(t, session.CallCount("SignBlob"))
}

func TestAvalancheSigner_KeepsExistingSignatures(t *testing.T) {
	session := mocks.NewMockSession(false)
	_, xpKey := testKeys(t, session)
	owner := xpAddress(t, session, xpKey)

	spend, err := mocks.NewAvalancheSpend(types.VMTypePVM, owner)
	require.NoError(t, err)
	tx, err := ParseAvalancheTx(types.VMTypePVM, spend.Tx, spend.UTXOs)
	require.NoError(t, err)
	first, err := NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
	require.NoError(t, err)

	// a signed tx parses back and its filled slots are left alone
	again, err := ParseAvalancheTx(types.VMTypePVM, first, spend.UTXOs)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), again.ID())
	require.NoError(t, again.Sign(context.Background(), mustKeychain(t, session, xpKey)))
	second, err := again.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, session.CallCount("SignBlob"))
}

func TestAvalancheSigner_WrongKeyTypeFailsBeforeSigning(t *testing.T) {
	session := mocks.NewMockSession(false)
	evmKey, _ := testKeys(t, session)

	spend, err := mocks.NewAvalancheSpend(types.VMTypeAVM, ids.ShortID{1})
	require.NoError(t, err)
	tx, err := ParseAvalancheTx(types.VMTypeAVM, spend.Tx, spend.UTXOs)
	require.NoError(t, err)

	_, err = NewAvalancheSigner(session, evmKey).SignTx(context.Background(), tx)
	assert.ErrorIs(t, err, apperrors.ErrSigningKeyNotFound)
	assert.Zero(t, session.CallCount("SignBlob"))
}

func TestAvalancheSigner_RemoteFailure(t *testing.T) {
	session := mocks.NewMockSession(false)
	_, xpKey := testKeys(t, session)
	owner := xpAddress(t, session, xpKey)
	boom := errors.New("backend down")
	session.FailOn("SignBlob", boom)

	spend, err := mocks.NewAvalancheSpend(types.VMTypeAVM, owner)
	require.NoError(t, err)
	tx, err := ParseAvalancheTx(types.VMTypeAVM, spend.Tx, spend.UTXOs)
	require.NoError(t, err)

	_, err = NewAvalancheSigner(session, xpKey).SignTx(context.Background(), tx)
	assert.ErrorIs(t, err, boom)
}

func mustKeychain(t *testing.T, session *mocks.MockSession, key types.KeyInfo) *RemoteKeychain {
	t.Helper()
	kc, err := NewRemoteKeychain(context.Background(), session, key)
	require.NoError(t, err)
	return kc
}

func TestRemoteKeychain(t *testing.T) {
	session := mocks.NewMockSession(false)
	evmKey, xpKey := testKeys(t, session)

	_, err := NewRemoteKeychain(context.Background(), session, evmKey)
	assert.ErrorIs(t, err, apperrors.ErrSigningKeyNotFound)

	kc, err := NewRemoteKeychain(context.Background(), session, xpKey)
	require.NoError(t, err)

	addrs := kc.Addresses()
	assert.Equal(t, 1, addrs.Len())
	assert.True(t, addrs.Contains(kc.Address()))

	signer, ok := kc.Get(kc.Address())
	require.True(t, ok)

	msg := []byte("keychain message")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	recovered, err := ethcrypto.Ecrecover(hashing.ComputeHash256(msg), sig)
	require.NoError(t, err)
	assert.Equal(t, pubKeyOf(t, xpKey), recovered)
	assert.Equal(t, 1, kc.Signatures())

	var other [20]byte
	_, ok = kc.Get(other)
	assert.False(t, ok)
}
