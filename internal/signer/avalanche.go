package signer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/cb58"
	"github.com/ava-labs/avalanchego/utils/crypto/keychain"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/set"
	xtxs "github.com/ava-labs/avalanchego/vms/avm/txs"
	"github.com/ava-labs/avalanchego/vms/components/avax"
	"github.com/ava-labs/avalanchego/vms/platformvm/fx"
	ptxs "github.com/ava-labs/avalanchego/vms/platformvm/txs"
	psigner "github.com/ava-labs/avalanchego/wallet/chain/p/signer"
	xbuilder "github.com/ava-labs/avalanchego/wallet/chain/x/builder"
	xsigner "github.com/ava-labs/avalanchego/wallet/chain/x/signer"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// AvalancheTx is an X or P-chain transaction decoded with its chain codec,
// together with the UTXOs its inputs consume.
type AvalancheTx interface {
	VM() types.VMType
	// Sign fills every credential slot owned by a key in kc
	Sign(ctx context.Context, kc keychain.Keychain) error
	ID() ids.ID
	// Serialize returns the signed transaction as checksummed hex
	Serialize() (string, error)
}

// ParseAvalancheTx decodes a checksummed hex transaction for vm. The
// transaction may be unsigned or partially signed; existing signatures are
// kept. utxos are the checksummed hex UTXOs spent by its inputs, without
// which no input can be attributed to a signing key.
func ParseAvalancheTx(vm types.VMType, encoded string, utxos []string) (AvalancheTx, error) {
	switch vm {
	case types.VMTypeAVM, types.VMTypePVM:
	case types.VMTypeEVM, types.VMTypeCoreEth:
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeChainNotSupported, apperrors.ChainNotSupported(string(vm)).Message, "C-chain atomic transactions are not supported", http.StatusBadRequest)
	default:
		return nil, apperrors.ChainNotSupported(string(vm))
	}

	raw, err := decodeAvalancheHex(encoded)
	if err != nil {
		return nil, invalidAvalancheTx(err)
	}

	if vm == types.VMTypePVM {
		tx, err := parsePChainTx(raw)
		if err != nil {
			return nil, invalidAvalancheTx(err)
		}
		backend, err := parseUTXOs(utxos, func(b []byte, utxo *avax.UTXO) error {
			_, err := ptxs.Codec.Unmarshal(b, utxo)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &pChainTx{tx: tx, utxos: backend}, nil
	}

	tx, err := parseXChainTx(raw)
	if err != nil {
		return nil, invalidAvalancheTx(err)
	}
	backend, err := parseUTXOs(utxos, func(b []byte, utxo *avax.UTXO) error {
		_, err := xbuilder.Parser.Codec().Unmarshal(b, utxo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &xChainTx{tx: tx, utxos: backend}, nil
}

func decodeAvalancheHex(encoded string) ([]byte, error) {
	raw, err := formatting.Decode(formatting.Hex, encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty transaction")
	}
	return raw, nil
}

func invalidAvalancheTx(err error) error {
	return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid transaction encoding", err.Error(), http.StatusBadRequest)
}

// parsePChainTx accepts a signed tx first, then bare unsigned bytes
func parsePChainTx(raw []byte) (*ptxs.Tx, error) {
	if tx, err := ptxs.Parse(ptxs.Codec, raw); err == nil {
		return tx, nil
	}
	var utx ptxs.UnsignedTx
	if _, err := ptxs.Codec.Unmarshal(raw, &utx); err != nil {
		return nil, fmt.Errorf("couldn't parse P-chain tx: %w", err)
	}
	tx := &ptxs.Tx{Unsigned: utx}
	if err := tx.Initialize(ptxs.Codec); err != nil {
		return nil, err
	}
	return tx, nil
}

func parseXChainTx(raw []byte) (*xtxs.Tx, error) {
	if tx, err := xbuilder.Parser.ParseTx(raw); err == nil {
		return tx, nil
	}
	var utx xtxs.UnsignedTx
	if _, err := xbuilder.Parser.Codec().Unmarshal(raw, &utx); err != nil {
		return nil, fmt.Errorf("couldn't parse X-chain tx: %w", err)
	}
	tx := &xtxs.Tx{Unsigned: utx}
	if err := tx.Initialize(xbuilder.Parser.Codec()); err != nil {
		return nil, err
	}
	return tx, nil
}

// utxoSet is a wallet signer backend over the UTXOs sent with a request
type utxoSet map[ids.ID]*avax.UTXO

func parseUTXOs(encoded []string, unmarshal func([]byte, *avax.UTXO) error) (utxoSet, error) {
	out := make(utxoSet, len(encoded))
	for i, e := range encoded {
		raw, err := decodeAvalancheHex(e)
		if err == nil {
			utxo := &avax.UTXO{}
			if err = unmarshal(raw, utxo); err == nil {
				out[utxo.InputID()] = utxo
				continue
			}
		}
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid UTXO encoding", fmt.Sprintf("utxo %d: %v", i, err), http.StatusBadRequest)
	}
	return out, nil
}

func (u utxoSet) GetUTXO(_ context.Context, _, utxoID ids.ID) (*avax.UTXO, error) {
	utxo, ok := u[utxoID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return utxo, nil
}

// GetOwner has no subnet owners to offer, so subnet-authorized P-chain
// transactions fail to sign.
func (utxoSet) GetOwner(context.Context, ids.ID) (fx.Owner, error) {
	return nil, database.ErrNotFound
}

type pChainTx struct {
	tx    *ptxs.Tx
	utxos utxoSet
}

func (t *pChainTx) VM() types.VMType { return types.VMTypePVM }

func (t *pChainTx) Sign(ctx context.Context, kc keychain.Keychain) error {
	return psigner.New(kc, t.utxos).Sign(ctx, t.tx)
}

func (t *pChainTx) ID() ids.ID { return t.tx.ID() }

func (t *pChainTx) Serialize() (string, error) { return encodeSignedTx(t.tx.Bytes()) }

type xChainTx struct {
	tx    *xtxs.Tx
	utxos utxoSet
}

func (t *xChainTx) VM() types.VMType { return types.VMTypeAVM }

func (t *xChainTx) Sign(ctx context.Context, kc keychain.Keychain) error {
	return xsigner.New(kc, t.utxos).Sign(ctx, t.tx)
}

func (t *xChainTx) ID() ids.ID { return t.tx.ID() }

func (t *xChainTx) Serialize() (string, error) { return encodeSignedTx(t.tx.Bytes()) }

func encodeSignedTx(b []byte) (string, error) {
	out, err := formatting.Encode(formatting.Hex, b)
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return out, nil
}

// KeyTypeSignsFor reports whether a key of keyType may sign for vm
func KeyTypeSignsFor(keyType types.KeyType, vm types.VMType) bool {
	switch vm {
	case types.VMTypeEVM, types.VMTypeCoreEth:
		return keyType == types.KeyTypeSecpEthAddr
	case types.VMTypeAVM, types.VMTypePVM:
		return keyType.IsAvalanche()
	}
	return false
}

// AvalancheSigner signs Avalanche transactions and messages with one remote key
type AvalancheSigner struct {
	session remote.Session
	key     types.KeyInfo
}

// NewAvalancheSigner creates a signer for key
func NewAvalancheSigner(session remote.Session, key types.KeyInfo) *AvalancheSigner {
	return &AvalancheSigner{session: session, key: key}
}

// SignTx signs every input of tx owned by the key and returns the signed tx
func (s *AvalancheSigner) SignTx(ctx context.Context, tx AvalancheTx) (string, error) {
	if !KeyTypeSignsFor(s.key.KeyType, tx.VM()) {
		return "", apperrors.SigningKeyNotFound(fmt.Sprintf("key type %s cannot sign %s transactions", s.key.KeyType, tx.VM()))
	}

	kc, err := NewRemoteKeychain(ctx, s.session, s.key)
	if err != nil {
		return "", err
	}
	if err := tx.Sign(ctx, kc); err != nil {
		if kc.err != nil {
			return "", kc.err
		}
		return "", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Transaction cannot be signed", err.Error(), http.StatusBadRequest)
	}
	if kc.Signatures() == 0 {
		return "", apperrors.SigningKeyNotFound(fmt.Sprintf("no input of %s is spendable by this key", tx.ID()))
	}
	return tx.Serialize()
}

// SignMessage signs an avalanche_signMessage payload and returns the
// signature as cb58.
func (s *AvalancheSigner) SignMessage(ctx context.Context, msg []byte) (string, error) {
	if !s.key.KeyType.IsAvalanche() {
		return "", apperrors.SigningKeyNotFound(fmt.Sprintf("key type %s cannot sign avalanche messages", s.key.KeyType))
	}

	sig, err := SignDigest(ctx, s.session, s.key.KeyID, AvalancheMessageDigest(msg))
	if err != nil {
		return "", err
	}
	encoded, err := cb58.Encode(sig)
	if err != nil {
		return "", fmt.Errorf("failed to encode signature: %w", err)
	}
	return encoded, nil
}

// RemoteKeychain exposes one remote X/P key as an avalanchego keychain so
// wallet SDK transaction builders can sign through the custody backend. The
// context is captured because the keychain interface has none.
type RemoteKeychain struct {
	ctx     context.Context
	session remote.Session
	keyID   string
	address ids.ShortID

	signatures int
	err        error
}

// NewRemoteKeychain creates a keychain for key, whose public key must be
// uncompressed hex.
func NewRemoteKeychain(ctx context.Context, session remote.Session, key types.KeyInfo) (*RemoteKeychain, error) {
	if !key.KeyType.IsAvalanche() {
		return nil, apperrors.SigningKeyNotFound(fmt.Sprintf("key type %s is not an X/P key", key.KeyType))
	}
	pub, err := crypto.DecodePubKeyHex(key.PublicKey)
	if err != nil {
		return nil, err
	}
	short, err := crypto.AvalancheShortAddress(pub)
	if err != nil {
		return nil, err
	}
	addr, err := ids.ToShortID(short)
	if err != nil {
		return nil, fmt.Errorf("failed to build address: %w", err)
	}
	return &RemoteKeychain{ctx: ctx, session: session, keyID: key.KeyID, address: addr}, nil
}

// Get returns the signer for addr
func (k *RemoteKeychain) Get(addr ids.ShortID) (keychain.Signer, bool) {
	if addr != k.address {
		return nil, false
	}
	return k, true
}

// Addresses returns the single address this keychain signs for
func (k *RemoteKeychain) Addresses() set.Set[ids.ShortID] {
	return set.Of(k.address)
}

// SignHash signs a 32-byte hash
func (k *RemoteKeychain) SignHash(hash []byte) ([]byte, error) {
	sig, err := SignDigest(k.ctx, k.session, k.keyID, hash)
	if err != nil {
		k.err = err
		return nil, err
	}
	k.signatures++
	return sig, nil
}

// Sign signs sha256 of msg
func (k *RemoteKeychain) Sign(msg []byte) ([]byte, error) {
	return k.SignHash(hashing.ComputeHash256(msg))
}

// Address returns the key's short address
func (k *RemoteKeychain) Address() ids.ShortID {
	return k.address
}

// Signatures returns how many signatures the remote key produced
func (k *RemoteKeychain) Signatures() int {
	return k.signatures
}

var (
	_ AvalancheTx       = (*pChainTx)(nil)
	_ AvalancheTx       = (*xChainTx)(nil)
	_ keychain.Keychain = (*RemoteKeychain)(nil)
	_ keychain.Signer   = (*RemoteKeychain)(nil)
)
