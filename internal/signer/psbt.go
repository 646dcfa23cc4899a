package signer

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

const psbtTxVersion = 2

// CreatePsbt builds an unsigned PSBT spending inputs to outputs. Every input
// carries its witness UTXO so segwit sighashes can be computed.
func CreatePsbt(req *types.BtcTransactionRequest, params *chaincfg.Params) (*psbt.Packet, error) {
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("transaction has no inputs")
	}
	if len(req.Outputs) == 0 {
		return nil, fmt.Errorf("transaction has no outputs")
	}

	outpoints := make([]*wire.OutPoint, len(req.Inputs))
	sequences := make([]uint32, len(req.Inputs))
	prevOuts := make([]*wire.TxOut, len(req.Inputs))
	for i, in := range req.Inputs {
		hash, err := chainhash.NewHashFromStr(in.TxHash)
		if err != nil {
			return nil, fmt.Errorf("input %d: invalid tx hash: %w", i, err)
		}
		script, err := hex.DecodeString(in.Script)
		if err != nil {
			return nil, fmt.Errorf("input %d: invalid script: %w", i, err)
		}
		outpoints[i] = wire.NewOutPoint(hash, in.Index)
		sequences[i] = in.Sequence
		if sequences[i] == 0 {
			sequences[i] = wire.MaxTxInSequenceNum
		}
		prevOuts[i] = wire.NewTxOut(in.Value, script)
	}

	txOuts := make([]*wire.TxOut, len(req.Outputs))
	for i, out := range req.Outputs {
		addr, err := btcutil.DecodeAddress(out.Address, params)
		if err != nil {
			return nil, fmt.Errorf("output %d: invalid address: %w", i, err)
		}
		if !addr.IsForNet(params) {
			return nil, fmt.Errorf("output %d: address %s is not for %s", i, out.Address, params.Name)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		txOuts[i] = wire.NewTxOut(out.Value, script)
	}

	packet, err := psbt.New(outpoints, txOuts, psbtTxVersion, req.LockTime, sequences)
	if err != nil {
		return nil, fmt.Errorf("failed to create psbt: %w", err)
	}
	for i := range packet.Inputs {
		packet.Inputs[i].WitnessUtxo = prevOuts[i]
	}
	return packet, nil
}

// CompactToDER converts a 64-byte r || s signature to DER with the
// SIGHASH_ALL byte appended.
func CompactToDER(sig []byte) ([]byte, error) {
	if len(sig) != 64 {
		return nil, apperrors.InvalidSignatureLength(len(sig))
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return nil, apperrors.InvalidSignatures("r overflows the curve order")
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return nil, apperrors.InvalidSignatures("s overflows the curve order")
	}
	der := ecdsa.NewSignature(&r, &s).Serialize()
	return append(der, byte(txscript.SigHashAll)), nil
}

// AttachSignatures adds one compact signature per input as a partial sig
func AttachSignatures(packet *psbt.Packet, pubKey []byte, sigs [][]byte) error {
	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return fmt.Errorf("failed to create psbt updater: %w", err)
	}
	for i, sig := range sigs {
		der, err := CompactToDER(sig)
		if err != nil {
			return err
		}
		outcome, err := updater.Sign(i, der, pubKey, nil, nil)
		if err != nil || outcome != psbt.SignSuccesful {
			return apperrors.InvalidSignatures(fmt.Sprintf("input %d rejected (outcome %d): %v", i, outcome, err))
		}
	}
	return nil
}

func prevOutFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range packet.UnsignedTx.TxIn {
		utxo := packet.Inputs[i].WitnessUtxo
		if utxo == nil {
			return nil, fmt.Errorf("input %d has no witness utxo", i)
		}
		fetcher.AddPrevOut(in.PreviousOutPoint, utxo)
	}
	return fetcher, nil
}

// ValidateSignatures checks every partial signature of every input against
// its BIP-143 sighash. Inputs without signatures are invalid.
func ValidateSignatures(packet *psbt.Packet) error {
	fetcher, err := prevOutFetcher(packet)
	if err != nil {
		return apperrors.InvalidSignatures(err.Error())
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	for i, in := range packet.Inputs {
		if len(in.PartialSigs) == 0 {
			return apperrors.InvalidSignatures(fmt.Sprintf("input %d is unsigned", i))
		}
		for _, ps := range in.PartialSigs {
			if err := verifyPartialSig(packet, sigHashes, i, ps); err != nil {
				return apperrors.InvalidSignatures(fmt.Sprintf("input %d: %v", i, err))
			}
		}
	}
	return nil
}

func verifyPartialSig(packet *psbt.Packet, sigHashes *txscript.TxSigHashes, index int, ps *psbt.PartialSig) error {
	pub, err := btcec.ParsePubKey(ps.PubKey)
	if err != nil {
		return fmt.Errorf("bad public key: %w", err)
	}
	if len(ps.Signature) < 2 || txscript.SigHashType(ps.Signature[len(ps.Signature)-1]) != txscript.SigHashAll {
		return fmt.Errorf("signature is not SIGHASH_ALL")
	}
	sig, err := ecdsa.ParseDERSignature(ps.Signature[:len(ps.Signature)-1])
	if err != nil {
		return fmt.Errorf("bad signature: %w", err)
	}

	utxo := packet.Inputs[index].WitnessUtxo
	keyHash := btcutil.Hash160(ps.PubKey)
	if !txscript.IsPayToWitnessPubKeyHash(utxo.PkScript) || !bytes.Equal(utxo.PkScript[2:], keyHash) {
		return fmt.Errorf("utxo script does not pay to the signing key")
	}

	scriptCode, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(keyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return fmt.Errorf("script code: %w", err)
	}

	digest, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, txscript.SigHashAll, packet.UnsignedTx, index, utxo.Value)
	if err != nil {
		return fmt.Errorf("sighash: %w", err)
	}
	if !sig.Verify(digest, pub) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

// FinalizeAndExtract finalizes all inputs and returns the raw transaction hex
func FinalizeAndExtract(packet *psbt.Packet) (string, error) {
	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return "", fmt.Errorf("failed to finalize psbt: %w", err)
	}
	tx, err := psbt.Extract(packet)
	if err != nil {
		return "", fmt.Errorf("failed to extract transaction: %w", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
