package signer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

const avalancheMessagePrefix = "\x1AAvalanche Signed Message:\n"

// DecodeMessageData returns the bytes of a 0x-hex message, or the UTF-8
// bytes of anything else.
func DecodeMessageData(data string) []byte {
	if strings.HasPrefix(data, "0x") {
		if raw, err := hexutil.Decode(data); err == nil {
			return raw
		}
	}
	return []byte(data)
}

// PersonalMessageDigest is the EIP-191 digest used by eth_sign and personal_sign
func PersonalMessageDigest(data []byte) []byte {
	return accounts.TextHash(data)
}

// AvalancheMessageDigest is sha256 of the prefixed, length-tagged message
func AvalancheMessageDigest(msg []byte) []byte {
	buf := make([]byte, 0, len(avalancheMessagePrefix)+4+len(msg))
	buf = append(buf, avalancheMessagePrefix...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	return hashing.ComputeHash256(buf)
}

// TypedDataDigest is the EIP-712 digest of v3 or v4 typed data. v3 does not
// support arrays.
func TypedDataDigest(data apitypes.TypedData, method types.RPCMethod) ([]byte, error) {
	if method == types.RPCSignTypedDataV3 {
		for typeName, fields := range data.Types {
			for _, f := range fields {
				if strings.HasSuffix(f.Type, "]") {
					return nil, apperrors.Unsupported(fmt.Sprintf("%s: arrays in %s.%s", method, typeName, f.Name))
				}
			}
		}
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid typed data", err.Error(), http.StatusBadRequest)
	}
	return digest, nil
}

// TypedDataV1Digest is the legacy eth_signTypedData (v1) digest:
// keccak(keccak(pack(schema)) || keccak(pack(values))).
func TypedDataV1Digest(fields []types.TypedDataV1Field) ([]byte, error) {
	if len(fields) == 0 {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid typed data v1", "no fields", http.StatusBadRequest)
	}

	var schema, values []byte
	for i, f := range fields {
		schema = append(schema, f.Type+" "+f.Name...)
		packed, err := packV1Value(f.Type, f.Value)
		if err != nil {
			return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid typed data v1", fmt.Sprintf("field %d (%s): %v", i, f.Name, err), http.StatusBadRequest)
		}
		values = append(values, packed...)
	}

	return crypto.Keccak256(crypto.Keccak256(schema), crypto.Keccak256(values)), nil
}

// packV1Value is Solidity's non-standard packed encoding of one value
func packV1Value(typ string, value any) ([]byte, error) {
	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return []byte(s), nil

	case typ == "bytes":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string, got %T", value)
		}
		return hexutil.Decode(s)

	case typ == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case typ == "address":
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %v", value)
		}
		return common.HexToAddress(s).Bytes(), nil

	case strings.HasPrefix(typ, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(typ, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("invalid type %s", typ)
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string, got %T", value)
		}
		raw, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(raw) > size {
			return nil, fmt.Errorf("%d bytes do not fit %s", len(raw), typ)
		}
		return common.RightPadBytes(raw, size), nil

	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		signed := strings.HasPrefix(typ, "int")
		bits := 256
		if suffix := strings.TrimPrefix(strings.TrimPrefix(typ, "u"), "int"); suffix != "" {
			n, err := strconv.Atoi(suffix)
			if err != nil || n < 8 || n > 256 || n%8 != 0 {
				return nil, fmt.Errorf("invalid type %s", typ)
			}
			bits = n
		}
		n, err := parseBigInt(value)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 && !signed {
			return nil, fmt.Errorf("negative value for %s", typ)
		}
		word := math.U256Bytes(new(big.Int).Set(n))
		return word[32-bits/8:], nil
	}

	return nil, fmt.Errorf("unsupported type %s", typ)
}

func parseBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case json.Number:
		return parseBigInt(v.String())
	case string:
		n, ok := math.ParseBig256(v)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("non-integral number %v", v)
		}
		return big.NewInt(int64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	}
	return nil, fmt.Errorf("expected integer, got %T", value)
}
