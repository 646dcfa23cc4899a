// Package devsigner is an in-memory custody backend for local development and
// tests. It derives secp256k1 and Solana Ed25519 keys from a BIP-39 mnemonic
// and answers the same operations as the remote session: list keys, prove
// identity, sign blobs and sign segwit inputs.
package devsigner

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/pkg/types"
)

const (
	purposeBIP44 = 44
	coinTypeEVM  = 60
	coinTypeAVAX = 9000
	coinTypeSOL  = 501

	identityTTL = time.Hour
)

type account struct {
	evm *ecdsa.PrivateKey
	xp  *ecdsa.PrivateKey
	svm ed25519.PrivateKey
}

// Signer holds the derived keys of one mnemonic
type Signer struct {
	mu         sync.RWMutex
	seed       []byte
	master     *hdkeychain.ExtendedKey
	mnemonicID string
	isTestnet  bool
	accounts   map[uint32]*account
	disabled   map[string]bool
}

// GenerateMnemonic returns a fresh 24-word mnemonic
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// New derives account 0 of mnemonic
func New(mnemonic string, isTestnet bool) (*Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	digest := sha256.Sum256(seed)
	s := &Signer{
		seed:       seed,
		master:     master,
		mnemonicID: "MnemonicId#0x" + hex.EncodeToString(digest[:16]),
		isTestnet:  isTestnet,
		accounts:   make(map[uint32]*account),
		disabled:   make(map[string]bool),
	}
	if err := s.DeriveAccount(0); err != nil {
		return nil, err
	}
	return s, nil
}

// MnemonicID identifies the mnemonic the keys descend from
func (s *Signer) MnemonicID() string {
	return s.mnemonicID
}

func evmPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/0/%d", purposeBIP44, coinTypeEVM, index)
}

func avaPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/0/%d", purposeBIP44, coinTypeAVAX, index)
}

func solanaPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/%d'/0'", purposeBIP44, coinTypeSOL, index)
}

// deriveSolana follows SLIP-10 for ed25519, where every level is hardened
func (s *Signer) deriveSolana(index uint32) ed25519.PrivateKey {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(s.seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, child := range []uint32{purposeBIP44, coinTypeSOL, index, 0} {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, hdkeychain.HardenedKeyStart+child)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key)
}

func (s *Signer) derive(coinType, index uint32) (*ecdsa.PrivateKey, error) {
	key := s.master
	for _, child := range []uint32{
		hdkeychain.HardenedKeyStart + purposeBIP44,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart,
		0,
		index,
	} {
		next, err := key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", child, err)
		}
		key = next
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return priv.ToECDSA(), nil
}

// DeriveAccount derives the EVM, X/P and Solana keys of an account index
func (s *Signer) DeriveAccount(index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[index]; ok {
		return nil
	}

	evm, err := s.derive(coinTypeEVM, index)
	if err != nil {
		return err
	}
	xp, err := s.derive(coinTypeAVAX, index)
	if err != nil {
		return err
	}
	s.accounts[index] = &account{evm: evm, xp: xp, svm: s.deriveSolana(index)}
	return nil
}

// DeriveMissing fills every gap below the highest derived account
func (s *Signer) DeriveMissing() error {
	s.mu.RLock()
	var highest uint32
	for idx := range s.accounts {
		if idx > highest {
			highest = idx
		}
	}
	s.mu.RUnlock()

	for idx := uint32(0); idx <= highest; idx++ {
		if err := s.DeriveAccount(idx); err != nil {
			return err
		}
	}
	return nil
}

// SetEnabled toggles a key in listings; disabled keys cannot sign
func (s *Signer) SetEnabled(keyID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[keyID] = !enabled
}

func (s *Signer) avaKeyType() types.KeyType {
	if s.isTestnet {
		return types.KeyTypeSecpAvaTestAddr
	}
	return types.KeyTypeSecpAvaAddr
}

func keyID(keyType types.KeyType, materialID string) string {
	return fmt.Sprintf("Key#%s_%s", keyType, materialID)
}

type entry struct {
	info types.KeyInfo
	priv *ecdsa.PrivateKey
	ed   ed25519.PrivateKey
}

// entries lists every key sorted by account index: EVM, X/P, then Solana
func (s *Signer) entries() ([]entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := make([]uint32, 0, len(s.accounts))
	for idx := range s.accounts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]entry, 0, 3*len(indices))
	for _, idx := range indices {
		acct := s.accounts[idx]

		evmPub := crypto.UncompressedPubKey(acct.evm)
		evmAddr := strings.ToLower(crypto.GetEthereumAddress(acct.evm).Hex())
		evmID := keyID(types.KeyTypeSecpEthAddr, evmAddr)
		out = append(out, entry{
			info: types.KeyInfo{
				KeyID:      evmID,
				KeyType:    types.KeyTypeSecpEthAddr,
				MaterialID: evmAddr,
				PublicKey:  "0x" + hex.EncodeToString(evmPub),
				Enabled:    !s.disabled[evmID],
				DerivationInfo: &types.DerivationInfo{
					MnemonicID:     s.mnemonicID,
					DerivationPath: evmPath(idx),
				},
			},
			priv: acct.evm,
		})

		xpPub := crypto.UncompressedPubKey(acct.xp)
		xpAddr, err := crypto.AvalancheAddress("", xpPub, s.isTestnet)
		if err != nil {
			return nil, err
		}
		xpType := s.avaKeyType()
		xpID := keyID(xpType, xpAddr)
		out = append(out, entry{
			info: types.KeyInfo{
				KeyID:      xpID,
				KeyType:    xpType,
				MaterialID: xpAddr,
				PublicKey:  "0x" + hex.EncodeToString(xpPub),
				Enabled:    !s.disabled[xpID],
				DerivationInfo: &types.DerivationInfo{
					MnemonicID:     s.mnemonicID,
					DerivationPath: avaPath(idx),
				},
			},
			priv: acct.xp,
		})

		svmPub := acct.svm.Public().(ed25519.PublicKey)
		svmAddr := solana.PublicKeyFromBytes(svmPub).String()
		svmID := keyID(types.KeyTypeEd25519SolanaAddr, svmAddr)
		out = append(out, entry{
			info: types.KeyInfo{
				KeyID:      svmID,
				KeyType:    types.KeyTypeEd25519SolanaAddr,
				MaterialID: svmAddr,
				PublicKey:  "0x" + hex.EncodeToString(svmPub),
				Enabled:    !s.disabled[svmID],
				DerivationInfo: &types.DerivationInfo{
					MnemonicID:     s.mnemonicID,
					DerivationPath: solanaPath(idx),
				},
			},
			ed: acct.svm,
		})
	}
	return out, nil
}

// Keys lists the key descriptors
func (s *Signer) Keys() ([]types.KeyInfo, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, err
	}
	out := make([]types.KeyInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	return out, nil
}

// ProveIdentity issues a short-lived identity proof for the mnemonic owner
func (s *Signer) ProveIdentity() *types.IdentityProof {
	return &types.IdentityProof{
		ID:       uuid.NewString(),
		Aud:      "devsigner",
		ExpEpoch: time.Now().Add(identityTTL).Unix(),
		Identity: &types.Identity{
			Iss: "https://devsigner.local",
			Sub: s.mnemonicID,
		},
		UserInfo: &types.UserInfo{
			UserID:      "User#" + s.mnemonicID,
			Initialized: true,
		},
	}
}

func (s *Signer) keyByID(id string) (entry, error) {
	entries, err := s.entries()
	if err != nil {
		return entry{}, err
	}
	for _, e := range entries {
		if e.info.KeyID == id {
			if !e.info.Enabled {
				return entry{}, fmt.Errorf("key %s is disabled", id)
			}
			return e, nil
		}
	}
	return entry{}, fmt.Errorf("unknown key %s", id)
}

// SignBlob signs a base64 blob. Secp256k1 keys take a 32-byte digest and
// return r || s || v; Ed25519 keys sign the blob itself.
func (s *Signer) SignBlob(keyID, blobB64 string) ([]byte, error) {
	e, err := s.keyByID(keyID)
	if err != nil {
		return nil, err
	}

	blob, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return nil, fmt.Errorf("blob is not base64: %w", err)
	}
	if e.ed != nil {
		return ed25519.Sign(e.ed, blob), nil
	}
	if len(blob) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(blob))
	}

	sig, err := ethcrypto.Sign(blob, e.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}
