package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
)

const (
	// UncompressedPubKeyLen is the SEC1 uncompressed secp256k1 key length
	UncompressedPubKeyLen = 65
	// CompressedPubKeyLen is the SEC1 compressed secp256k1 key length
	CompressedPubKeyLen = 33
	// EncryptionKeyLen is the size of a wallet secret encryption key
	EncryptionKeyLen = 32

	uncompressedMarker = 0x04
)

// GenerateEthereumKey generates a new secp256k1 private key
func GenerateEthereumKey() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return privateKey, nil
}

// GetEthereumAddress derives the Ethereum address from a private key
func GetEthereumAddress(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// UncompressedPubKey returns the 65-byte public key of a private key
func UncompressedPubKey(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&privateKey.PublicKey)
}

// Strip0x removes a leading 0x from a hex string
func Strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// DecodePubKeyHex decodes a hex public key with or without 0x prefix
func DecodePubKeyHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(Strip0x(s))
	if err != nil {
		return nil, apperrors.InvalidPublicKey(fmt.Sprintf("not hex: %v", err))
	}
	return raw, nil
}

// ValidateUncompressedPubKey checks for a 65-byte key with the 0x04 marker
func ValidateUncompressedPubKey(pub []byte) error {
	if len(pub) != UncompressedPubKeyLen || pub[0] != uncompressedMarker {
		return apperrors.InvalidPublicKey(fmt.Sprintf("expected %d-byte uncompressed key, got %d bytes", UncompressedPubKeyLen, len(pub)))
	}
	return nil
}

// CompressPubKey turns an uncompressed key into its 33-byte form.
// The parity comes from the last byte, which is the low byte of Y.
func CompressPubKey(pub []byte) ([]byte, error) {
	if err := ValidateUncompressedPubKey(pub); err != nil {
		return nil, err
	}
	out := make([]byte, CompressedPubKeyLen)
	out[0] = 0x02 | (pub[UncompressedPubKeyLen-1] & 1)
	copy(out[1:], pub[1:33])
	return out, nil
}

// EVMAddress derives the EVM address of an uncompressed public key
func EVMAddress(pub []byte) (common.Address, error) {
	key, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return common.Address{}, apperrors.InvalidPublicKey(err.Error())
	}
	return crypto.PubkeyToAddress(*key), nil
}

// GenerateEncryptionKey returns a fresh random 32-byte key
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, EncryptionKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// Zero overwrites b in place
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
