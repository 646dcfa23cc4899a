package crypto

import (
	"fmt"

	"github.com/ava-labs/avalanchego/utils/constants"
	"github.com/ava-labs/avalanchego/utils/formatting/address"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gagliardetto/solana-go"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

// Avalanche chain aliases used as address prefixes
const (
	ChainAliasX = "X"
	ChainAliasP = "P"
	ChainAliasC = "C"
)

// BtcParams returns the Bitcoin network parameters
func BtcParams(isTestnet bool) *chaincfg.Params {
	if isTestnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// AvalancheHRP returns the bech32 human readable part for the network
func AvalancheHRP(isTestnet bool) string {
	if isTestnet {
		return constants.GetHRP(constants.FujiID)
	}
	return constants.GetHRP(constants.MainnetID)
}

// BtcWitnessAddress derives the P2WPKH address of an uncompressed public key
func BtcWitnessAddress(pub []byte, params *chaincfg.Params) (*btcutil.AddressWitnessPubKeyHash, error) {
	compressed, err := CompressPubKey(pub)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(compressed), params)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bitcoin address: %w", err)
	}
	return addr, nil
}

// AvalancheShortAddress returns the 20-byte X/P address payload of a key
func AvalancheShortAddress(pub []byte) ([]byte, error) {
	compressed, err := CompressPubKey(pub)
	if err != nil {
		return nil, err
	}
	return hashing.PubkeyBytesToAddress(compressed), nil
}

// AvalancheAddress formats a key as "<alias>-<hrp>1..."; an empty alias
// yields the bare bech32 form.
func AvalancheAddress(chainAlias string, pub []byte, isTestnet bool) (string, error) {
	short, err := AvalancheShortAddress(pub)
	if err != nil {
		return "", err
	}

	hrp := AvalancheHRP(isTestnet)
	if chainAlias == "" {
		return address.FormatBech32(hrp, short)
	}
	return address.Format(chainAlias, hrp, short)
}

// SolanaPublicKey validates a 32-byte Ed25519 key
func SolanaPublicKey(pub []byte) (solana.PublicKey, error) {
	if len(pub) != solana.PublicKeyLength {
		return solana.PublicKey{}, apperrors.InvalidPublicKey(fmt.Sprintf("expected %d-byte ed25519 key, got %d bytes", solana.PublicKeyLength, len(pub)))
	}
	return solana.PublicKeyFromBytes(pub), nil
}

// SolanaAddress is the base58 form of an Ed25519 key
func SolanaAddress(pub []byte) (string, error) {
	key, err := SolanaPublicKey(pub)
	if err != nil {
		return "", err
	}
	return key.String(), nil
}
