package signer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/ava-labs/avalanchego/utils/cb58"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
	"github.com/better-wallet/seedless/tests/mocks"
)

const mailTypedData = `{
  "types": {
    "EIP712Domain": [
      {"name": "name", "type": "string"},
      {"name": "version", "type": "string"},
      {"name": "chainId", "type": "uint256"},
      {"name": "verifyingContract", "type": "address"}
    ],
    "Person": [
      {"name": "name", "type": "string"},
      {"name": "wallet", "type": "address"}
    ],
    "Mail": [
      {"name": "from", "type": "Person"},
      {"name": "to", "type": "Person"},
      {"name": "contents", "type": "string"}
    ]
  },
  "primaryType": "Mail",
  "domain": {
    "name": "Ether Mail",
    "version": "1",
    "chainId": 1,
    "verifyingContract": "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
  },
  "message": {
    "from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
    "to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
    "contents": "Hello, Bob!"
  }
}`

func TestDecodeMessageData(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad}, DecodeMessageData("0xdead"))
	assert.Equal(t, []byte("hello"), DecodeMessageData("hello"))
	assert.Equal(t, []byte("0xnothex"), DecodeMessageData("0xnothex"))
}

func TestPersonalMessageDigest(t *testing.T) {
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	assert.Equal(t, want, PersonalMessageDigest([]byte("hello")))
}

func TestAvalancheMessageDigest(t *testing.T) {
	msg := []byte("hello avalanche")

	var buf []byte
	buf = append(buf, 0x1A)
	buf = append(buf, "Avalanche Signed Message:\n"...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	want := sha256.Sum256(buf)

	assert.Equal(t, want[:], AvalancheMessageDigest(msg))
}

func TestTypedDataDigest_EIP712Vector(t *testing.T) {
	var td apitypes.TypedData
	require.NoError(t, json.Unmarshal([]byte(mailTypedData), &td))

	for _, method := range []types.RPCMethod{types.RPCSignTypedDataV3, types.RPCSignTypedDataV4} {
		digest, err := TypedDataDigest(td, method)
		require.NoError(t, err)
		assert.Equal(t, "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2", hexutil.Encode(digest), method)
	}
}

func TestTypedDataDigest_V3RejectsArrays(t *testing.T) {
	var td apitypes.TypedData
	require.NoError(t, json.Unmarshal([]byte(mailTypedData), &td))
	td.Types["Mail"] = append(td.Types["Mail"], apitypes.Type{Name: "cc", Type: "Person[]"})

	_, err := TypedDataDigest(td, types.RPCSignTypedDataV3)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedOperation)
}

// Vectors published with eth-sig-util's typedSignatureHash.
func TestTypedDataV1Digest(t *testing.T) {
	message := types.TypedDataV1Field{Type: "string", Name: "message", Value: "Hi, Alice!"}
	value := types.TypedDataV1Field{Type: "uint8", Name: "value", Value: float64(10)}

	tests := []struct {
		name   string
		fields []types.TypedDataV1Field
		want   string
	}{
		{name: "single value", fields: []types.TypedDataV1Field{message}, want: "0x14b9f24872e28cc49e72dc104d7380d8e0ba84a3fe2e712704bcac66a5702bd5"},
		{name: "multiple values", fields: []types.TypedDataV1Field{message, value}, want: "0xf7ad23226db5c1c00ca0ca1468fd49c8f8bbc1489bc1c382de5adc557a69c229"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, err := TypedDataV1Digest(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hexutil.Encode(digest))
		})
	}
}

func TestTypedDataV1Digest_Errors(t *testing.T) {
	_, err := TypedDataV1Digest(nil)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = TypedDataV1Digest([]types.TypedDataV1Field{{Type: "string", Name: "x", Value: 5.0}})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestPackV1Value(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		value any
		want  []byte
	}{
		{"bool true", "bool", true, []byte{1}},
		{"bool false", "bool", false, []byte{0}},
		{"uint16", "uint16", "258", []byte{0x01, 0x02}},
		{"int8 negative", "int8", float64(-1), []byte{0xff}},
		{"uint hex", "uint32", "0x10", []byte{0, 0, 0, 0x10}},
		{"bytes4 padded", "bytes4", "0x01", []byte{1, 0, 0, 0}},
		{"bytes", "bytes", "0xabcd", []byte{0xab, 0xcd}},
		{"address", "address", "0x000000000000000000000000000000000000dEaD", append(make([]byte, 18), 0xde, 0xad)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := packV1Value(tt.typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	uint256, err := packV1Value("uint256", json.Number("1"))
	require.NoError(t, err)
	assert.Len(t, uint256, 32)
	assert.Equal(t, byte(1), uint256[31])
}

func TestPackV1Value_Errors(t *testing.T) {
	tests := []struct {
		typ   string
		value any
	}{
		{"uint8", float64(-1)},
		{"uint8", 1.5},
		{"uint7", float64(1)},
		{"bytes2", "0x010203"},
		{"bytes33", "0x01"},
		{"address", "0x1234"},
		{"string[]", []any{"a"}},
		{"bool", "true"},
	}
	for _, tt := range tests {
		_, err := packV1Value(tt.typ, tt.value)
		assert.Error(t, err, "%s %v", tt.typ, tt.value)
	}
}

func TestAvalancheSigner_SignMessage(t *testing.T) {
	session := mocks.NewMockSession(false)
	_, xpKey := testKeys(t, session)

	msg := []byte("gm avalanche")
	encoded, err := NewAvalancheSigner(session, xpKey).SignMessage(context.Background(), msg)
	require.NoError(t, err)

	sig, err := cb58.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := crypto.Ecrecover(AvalancheMessageDigest(msg), sig)
	require.NoError(t, err)
	assert.Equal(t, pubKeyOf(t, xpKey), recovered)
}

func TestAvalancheSigner_SignMessageRejectsEVMKey(t *testing.T) {
	session := mocks.NewMockSession(false)
	evmKey, _ := testKeys(t, session)

	_, err := NewAvalancheSigner(session, evmKey).SignMessage(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, apperrors.ErrSigningKeyNotFound)
	assert.Zero(t, session.CallCount("SignBlob"))
}
