// Package wallet is the single entry point for signing with a seedless wallet.
// It resolves which remote key signs for an address or chain, dispatches to the
// chain signers and handles account expansion.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/metrics"
	"github.com/better-wallet/seedless/internal/provisioning"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Provisioner derives new account keys on the custody backend
type Provisioner interface {
	AddAccount(ctx context.Context, req provisioning.AddAccountRequest) error
	DeriveMissingKeys(ctx context.Context, req provisioning.DeriveMissingKeysRequest) error
}

// SeedlessWallet signs through a remote session. It holds only the identity
// public keys of each account and is not mutated after construction.
type SeedlessWallet struct {
	session     remote.Session
	provisioner Provisioner
	pubKeys     []types.PubKeys
	metrics     *metrics.Metrics
}

// NewSeedlessWallet creates a wallet; pubKeys[i] belongs to account i
func NewSeedlessWallet(session remote.Session, provisioner Provisioner, pubKeys []types.PubKeys, m *metrics.Metrics) (*SeedlessWallet, error) {
	if session == nil {
		return nil, fmt.Errorf("remote session is required")
	}
	if len(pubKeys) == 0 {
		return nil, apperrors.ErrAccountsNotCreated
	}

	keys := make([]types.PubKeys, len(pubKeys))
	for i, pk := range pubKeys {
		evm, err := crypto.DecodePubKeyHex(pk.EVM)
		if err != nil {
			return nil, err
		}
		if err := crypto.ValidateUncompressedPubKey(evm); err != nil {
			return nil, err
		}
		keys[i] = types.PubKeys{
			EVM: strings.ToLower(crypto.Strip0x(pk.EVM)),
			XP:  strings.ToLower(crypto.Strip0x(pk.XP)),
			SVM: strings.ToLower(crypto.Strip0x(pk.SVM)),
		}
	}

	return &SeedlessWallet{
		session:     session,
		provisioner: provisioner,
		pubKeys:     keys,
		metrics:     m,
	}, nil
}

// AccountCount returns how many accounts have public keys
func (w *SeedlessWallet) AccountCount() int {
	return len(w.pubKeys)
}

// GetPublicKey returns the hex public key an account uses for vm
func (w *SeedlessWallet) GetPublicKey(accountIndex int, vm types.VMType) (string, error) {
	if accountIndex < 0 || accountIndex >= len(w.pubKeys) {
		return "", apperrors.PublicKeyNotAvailable(fmt.Sprintf("account %d", accountIndex))
	}
	pk := w.pubKeys[accountIndex]

	var key string
	switch vm {
	case types.VMTypeEVM, types.VMTypeBitcoin, types.VMTypeCoreEth:
		key = pk.EVM
	case types.VMTypeAVM, types.VMTypePVM:
		key = pk.XP
	case types.VMTypeSVM:
		key = pk.SVM
	default:
		return "", apperrors.ChainNotSupported(string(vm))
	}
	if key == "" {
		return "", apperrors.PublicKeyNotAvailable(fmt.Sprintf("account %d has no %s key", accountIndex, vm))
	}
	return key, nil
}

func (w *SeedlessWallet) publicKeyBytes(accountIndex int, vm types.VMType) ([]byte, error) {
	key, err := w.GetPublicKey(accountIndex, vm)
	if err != nil {
		return nil, err
	}
	return crypto.DecodePubKeyHex(key)
}

// GetAddresses derives every chain address of an account from its public keys
func (w *SeedlessWallet) GetAddresses(accountIndex int, isTestnet bool) (map[types.VMType]string, error) {
	evmPub, err := w.publicKeyBytes(accountIndex, types.VMTypeEVM)
	if err != nil {
		return nil, err
	}

	evmAddr, err := crypto.EVMAddress(evmPub)
	if err != nil {
		return nil, err
	}
	btcAddr, err := crypto.BtcWitnessAddress(evmPub, crypto.BtcParams(isTestnet))
	if err != nil {
		return nil, err
	}
	cAddr, err := crypto.AvalancheAddress(crypto.ChainAliasC, evmPub, isTestnet)
	if err != nil {
		return nil, err
	}

	out := map[types.VMType]string{
		types.VMTypeEVM:     evmAddr.Hex(),
		types.VMTypeBitcoin: btcAddr.EncodeAddress(),
		types.VMTypeCoreEth: cAddr,
	}

	xpPub, err := w.publicKeyBytes(accountIndex, types.VMTypeAVM)
	if err != nil {
		return nil, err
	}
	if out[types.VMTypeAVM], err = crypto.AvalancheAddress(crypto.ChainAliasX, xpPub, isTestnet); err != nil {
		return nil, err
	}
	if out[types.VMTypePVM], err = crypto.AvalancheAddress(crypto.ChainAliasP, xpPub, isTestnet); err != nil {
		return nil, err
	}

	// accounts provisioned before Solana support have no SVM key
	if w.pubKeys[accountIndex].SVM != "" {
		svmPub, err := w.publicKeyBytes(accountIndex, types.VMTypeSVM)
		if err != nil {
			return nil, err
		}
		if out[types.VMTypeSVM], err = crypto.SolanaAddress(svmPub); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// evmAddress is the lowercase address material ids use
func (w *SeedlessWallet) evmAddress(accountIndex int) (string, error) {
	pub, err := w.publicKeyBytes(accountIndex, types.VMTypeEVM)
	if err != nil {
		return "", err
	}
	addr, err := crypto.EVMAddress(pub)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}

// getSigningKeyByAddress finds the key whose material id is address
func (w *SeedlessWallet) getSigningKeyByAddress(ctx context.Context, address string) (types.KeyInfo, error) {
	keys, err := w.session.Keys(ctx)
	if err != nil {
		return types.KeyInfo{}, err
	}

	evm := strings.HasPrefix(address, "0x")
	for _, k := range keys {
		if k.MaterialID == address || (evm && strings.EqualFold(k.MaterialID, address)) {
			return k, nil
		}
	}
	return types.KeyInfo{}, apperrors.SigningKeyNotFound("address: " + address)
}

// getSigningKeyByTypeAndKey finds the key of keyType whose public key is pubKey
func (w *SeedlessWallet) getSigningKeyByTypeAndKey(ctx context.Context, match func(types.KeyType) bool, pubKey string) (types.KeyInfo, error) {
	if pubKey == "" {
		return types.KeyInfo{}, apperrors.PublicKeyNotAvailable("no public key to look up")
	}

	keys, err := w.session.Keys(ctx)
	if err != nil {
		return types.KeyInfo{}, err
	}

	for _, k := range keys {
		if !match(k.KeyType) {
			continue
		}
		if strings.EqualFold(crypto.Strip0x(k.PublicKey), pubKey) {
			return k, nil
		}
	}
	return types.KeyInfo{}, apperrors.SigningKeyNotFound("public key: " + pubKey)
}

// getMnemonicID resolves the mnemonic behind account 0's EVM key
func (w *SeedlessWallet) getMnemonicID(ctx context.Context) (string, error) {
	keys, err := w.session.Keys(ctx)
	if err != nil {
		return "", err
	}

	seed := w.pubKeys[0].EVM
	for _, k := range keys {
		if !strings.EqualFold(crypto.Strip0x(k.PublicKey), seed) {
			continue
		}
		if k.DerivationInfo != nil && k.DerivationInfo.MnemonicID != "" {
			return k.DerivationInfo.MnemonicID, nil
		}
	}
	return "", apperrors.MnemonicIDNotFound("no derivation record for the seed account key")
}

// AddAccount derives the keys of accountIndex on the backend. Index 0 is the
// seed account and cannot be added.
func (w *SeedlessWallet) AddAccount(ctx context.Context, accountIndex int) error {
	if accountIndex < 1 {
		return apperrors.AccountIndex(accountIndex)
	}
	if w.provisioner == nil {
		return apperrors.Unsupported("account provisioning is not configured")
	}

	proof, err := w.session.ProveIdentity(ctx)
	if err != nil {
		return err
	}
	mnemonicID, err := w.getMnemonicID(ctx)
	if err != nil {
		return err
	}

	if err := w.provisioner.AddAccount(ctx, provisioning.AddAccountRequest{
		AccountIndex:  accountIndex,
		IdentityProof: proof,
		MnemonicID:    mnemonicID,
	}); err != nil {
		return err
	}

	logger.Info(ctx, "account added", "account_index", accountIndex)
	return nil
}

// DeriveMissingKeys asks the backend to fill gaps in the derived accounts
func (w *SeedlessWallet) DeriveMissingKeys(ctx context.Context) error {
	if w.provisioner == nil {
		return apperrors.Unsupported("account provisioning is not configured")
	}

	proof, err := w.session.ProveIdentity(ctx)
	if err != nil {
		return err
	}
	mnemonicID, err := w.getMnemonicID(ctx)
	if err != nil {
		return err
	}

	return w.provisioner.DeriveMissingKeys(ctx, provisioning.DeriveMissingKeysRequest{
		IdentityProof: proof,
		MnemonicID:    mnemonicID,
	})
}
