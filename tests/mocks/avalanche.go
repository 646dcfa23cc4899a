package mocks

import (
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/constants"
	"github.com/ava-labs/avalanchego/utils/crypto/secp256k1"
	"github.com/ava-labs/avalanchego/utils/formatting"
	xtxs "github.com/ava-labs/avalanchego/vms/avm/txs"
	"github.com/ava-labs/avalanchego/vms/components/avax"
	ptxs "github.com/ava-labs/avalanchego/vms/platformvm/txs"
	"github.com/ava-labs/avalanchego/vms/secp256k1fx"
	xbuilder "github.com/ava-labs/avalanchego/wallet/chain/x/builder"

	"github.com/better-wallet/seedless/pkg/types"
)

var (
	avaxAssetID = ids.ID{0xaa}
	xChainID    = ids.ID{'X'}
)

// AvalancheSpend is an unsigned base transaction whose i-th input spends a
// UTXO owned by the i-th owner
type AvalancheSpend struct {
	Tx            string
	UTXOs         []string
	UnsignedBytes []byte
}

// NewAvalancheSpend builds an AvalancheSpend for the X (AVM) or P (PVM) chain
func NewAvalancheSpend(vm types.VMType, owners ...ids.ShortID) (*AvalancheSpend, error) {
	c, err := avalancheCodec(vm)
	if err != nil {
		return nil, err
	}

	spend := &AvalancheSpend{}
	ins := make([]*avax.TransferableInput, len(owners))
	for i, owner := range owners {
		utxo := &avax.UTXO{
			UTXOID: avax.UTXOID{TxID: ids.ID{byte(i + 1)}},
			Asset:  avax.Asset{ID: avaxAssetID},
			Out: &secp256k1fx.TransferOutput{
				Amt:          1_000_000,
				OutputOwners: secp256k1fx.OutputOwners{Threshold: 1, Addrs: []ids.ShortID{owner}},
			},
		}
		encoded, err := marshalHex(c, utxo)
		if err != nil {
			return nil, err
		}
		spend.UTXOs = append(spend.UTXOs, encoded)

		ins[i] = &avax.TransferableInput{
			UTXOID: utxo.UTXOID,
			Asset:  utxo.Asset,
			In: &secp256k1fx.TransferInput{
				Amt:   1_000_000,
				Input: secp256k1fx.Input{SigIndices: []uint32{0}},
			},
		}
	}

	if vm == types.VMTypePVM {
		var utx ptxs.UnsignedTx = &ptxs.BaseTx{BaseTx: avax.BaseTx{
			NetworkID:    constants.FujiID,
			BlockchainID: constants.PlatformChainID,
			Ins:          ins,
		}}
		spend.UnsignedBytes, err = c.Marshal(ptxs.CodecVersion, &utx)
	} else {
		var utx xtxs.UnsignedTx = &xtxs.BaseTx{BaseTx: avax.BaseTx{
			NetworkID:    constants.FujiID,
			BlockchainID: xChainID,
			Ins:          ins,
		}}
		spend.UnsignedBytes, err = c.Marshal(xtxs.CodecVersion, &utx)
	}
	if err != nil {
		return nil, err
	}
	spend.Tx, err = formatting.Encode(formatting.Hex, spend.UnsignedBytes)
	return spend, err
}

// AvalancheCredentials parses a signed transaction and returns its unsigned
// bytes and the signatures of each credential
func AvalancheCredentials(vm types.VMType, signed string) ([]byte, [][][secp256k1.SignatureLen]byte, error) {
	raw, err := formatting.Decode(formatting.Hex, signed)
	if err != nil {
		return nil, nil, err
	}

	var (
		unsigned []byte
		creds    [][][secp256k1.SignatureLen]byte
	)
	switch vm {
	case types.VMTypePVM:
		tx, err := ptxs.Parse(ptxs.Codec, raw)
		if err != nil {
			return nil, nil, err
		}
		unsigned = tx.Unsigned.Bytes()
		for _, c := range tx.Creds {
			cred, ok := c.(*secp256k1fx.Credential)
			if !ok {
				return nil, nil, fmt.Errorf("unexpected credential %T", c)
			}
			creds = append(creds, cred.Sigs)
		}
	case types.VMTypeAVM:
		tx, err := xbuilder.Parser.ParseTx(raw)
		if err != nil {
			return nil, nil, err
		}
		unsigned = tx.Unsigned.Bytes()
		for _, c := range tx.Creds {
			cred, ok := c.Credential.(*secp256k1fx.Credential)
			if !ok {
				return nil, nil, fmt.Errorf("unexpected credential %T", c.Credential)
			}
			creds = append(creds, cred.Sigs)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported vm %s", vm)
	}
	return unsigned, creds, nil
}

func avalancheCodec(vm types.VMType) (codec.Manager, error) {
	switch vm {
	case types.VMTypePVM:
		return ptxs.Codec, nil
	case types.VMTypeAVM:
		return xbuilder.Parser.Codec(), nil
	}
	return nil, fmt.Errorf("unsupported vm %s", vm)
}

func marshalHex(c codec.Manager, v any) (string, error) {
	b, err := c.Marshal(0, v)
	if err != nil {
		return "", err
	}
	return formatting.Encode(formatting.Hex, b)
}
