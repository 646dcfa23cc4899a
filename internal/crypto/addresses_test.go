package crypto

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

func TestBtcWitnessAddress(t *testing.T) {
	key, err := GenerateEthereumKey()
	require.NoError(t, err)
	pub := UncompressedPubKey(key)

	mainnet, err := BtcWitnessAddress(pub, BtcParams(false))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mainnet.EncodeAddress(), "bc1q"))

	testnet, err := BtcWitnessAddress(pub, BtcParams(true))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(testnet.EncodeAddress(), "tb1q"))

	decoded, err := btcutil.DecodeAddress(mainnet.EncodeAddress(), BtcParams(false))
	require.NoError(t, err)
	assert.Equal(t, mainnet.ScriptAddress(), decoded.ScriptAddress())

	_, err = BtcWitnessAddress(pub[:33], BtcParams(false))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPublicKey)
}

func TestAvalancheAddress(t *testing.T) {
	key, err := GenerateEthereumKey()
	require.NoError(t, err)
	pub := UncompressedPubKey(key)

	x, err := AvalancheAddress(ChainAliasX, pub, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(x, "X-avax1"))

	p, err := AvalancheAddress(ChainAliasP, pub, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "P-fuji1"))

	bare, err := AvalancheAddress("", pub, false)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(x, "X-"), bare)

	short, err := AvalancheShortAddress(pub)
	require.NoError(t, err)
	assert.Len(t, short, 20)
}

func TestSolanaAddress(t *testing.T) {
	// m/44'/501'/0'/0' of the all-"abandon" test mnemonic
	pub, err := DecodePubKeyHex("0xf036276246a75b9de3349ed42b15e232f6518fc20f5fcd4f1d64e81f9bd258f7")
	require.NoError(t, err)

	addr, err := SolanaAddress(pub)
	require.NoError(t, err)
	assert.Equal(t, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk", addr)

	_, err = SolanaAddress(pub[:31])
	assert.ErrorIs(t, err, apperrors.ErrInvalidPublicKey)
}
