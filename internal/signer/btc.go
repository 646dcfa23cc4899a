package signer

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/remote"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// BtcSigner signs one input of a PSBT with the remote key behind fromKey.
// It is built per signing call and never mutated.
type BtcSigner struct {
	session    remote.Session
	pubKey     []byte
	compressed []byte
	packet     *psbt.Packet
	inputIndex int
	utxos      []types.UTXO
	params     *chaincfg.Params
}

// NewBtcSigner validates fromKey (65-byte uncompressed) and binds the signer
// to one input of packet.
func NewBtcSigner(session remote.Session, fromKey []byte, packet *psbt.Packet, inputIndex int, utxos []types.UTXO, params *chaincfg.Params) (*BtcSigner, error) {
	compressed, err := crypto.CompressPubKey(fromKey)
	if err != nil {
		return nil, err
	}
	if packet == nil || packet.UnsignedTx == nil {
		return nil, fmt.Errorf("psbt is required")
	}
	if inputIndex < 0 || inputIndex >= len(packet.UnsignedTx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range", inputIndex)
	}

	return &BtcSigner{
		session:    session,
		pubKey:     append([]byte(nil), fromKey...),
		compressed: compressed,
		packet:     packet,
		inputIndex: inputIndex,
		utxos:      utxos,
		params:     params,
	}, nil
}

// PublicKey returns the 33-byte compressed key
func (s *BtcSigner) PublicKey() []byte {
	return s.compressed
}

// Address returns the P2WPKH address the backend knows the key by
func (s *BtcSigner) Address() (string, error) {
	addr, err := crypto.BtcWitnessAddress(s.pubKey, s.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// RedeemScript returns the BIP-143 script code of a P2WPKH input, which is
// the P2PKH script of the key hash.
func (s *BtcSigner) RedeemScript() ([]byte, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(s.compressed), s.params)
	if err != nil {
		return nil, apperrors.RedeemScript(err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, apperrors.RedeemScript(err)
	}
	if len(script) == 0 {
		return nil, apperrors.RedeemScript(nil)
	}
	return script, nil
}

func (s *BtcSigner) inputValue() (int64, error) {
	prev := s.packet.UnsignedTx.TxIn[s.inputIndex].PreviousOutPoint
	for _, u := range s.utxos {
		if u.TxHash == prev.Hash.String() && u.Index == prev.Index {
			return u.Value, nil
		}
	}
	return 0, fmt.Errorf("no utxo for input %d (%s)", s.inputIndex, prev)
}

// SignRequest builds the backend request for this input
func (s *BtcSigner) SignRequest() (*types.BtcSignRequest, error) {
	value, err := s.inputValue()
	if err != nil {
		return nil, err
	}
	script, err := s.RedeemScript()
	if err != nil {
		return nil, err
	}

	tx := s.packet.UnsignedTx
	desc := types.BtcTxDescriptor{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Input:    make([]types.BtcTxIn, len(tx.TxIn)),
		Output:   make([]types.BtcTxOut, len(tx.TxOut)),
	}
	for i, in := range tx.TxIn {
		desc.Input[i] = types.BtcTxIn{
			PreviousOutput: in.PreviousOutPoint.Hash.String() + ":" + strconv.FormatUint(uint64(in.PreviousOutPoint.Index), 10),
			ScriptSig:      "",
			Sequence:       in.Sequence,
			Witness:        []string{},
		}
	}
	for i, out := range tx.TxOut {
		desc.Output[i] = types.BtcTxOut{
			Value:        out.Value,
			ScriptPubkey: hex.EncodeToString(out.PkScript),
		}
	}

	return &types.BtcSignRequest{
		SigKind: types.BtcSigKind{Segwit: &types.BtcSegwitSig{
			InputIndex: s.inputIndex,
			ScriptCode: hex.EncodeToString(script),
			Value:      value,
			Sighash:    "All",
		}},
		Tx: desc,
	}, nil
}

// Sign requests the input signature and returns the 64-byte r || s
func (s *BtcSigner) Sign(ctx context.Context) ([]byte, error) {
	req, err := s.SignRequest()
	if err != nil {
		return nil, err
	}
	address, err := s.Address()
	if err != nil {
		return nil, err
	}

	sig, err := s.session.SignBtc(ctx, address, req)
	if err != nil {
		return nil, err
	}
	if len(sig) != RecoverableSignatureLen {
		return nil, apperrors.InvalidSignatureLength(len(sig))
	}
	return sig[:64], nil
}

// SignSchnorr is not supported by the custody backend
func (s *BtcSigner) SignSchnorr(ctx context.Context) ([]byte, error) {
	return nil, apperrors.Unsupported("schnorr signatures are not supported")
}
