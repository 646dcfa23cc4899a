package devsigner

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/pkg/types"
)

// MsgTxFromDescriptor rebuilds the unsigned transaction a sign request describes
func MsgTxFromDescriptor(d *types.BtcTxDescriptor) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(d.Version)
	tx.LockTime = d.LockTime

	for i, in := range d.Input {
		txid, vout, ok := strings.Cut(in.PreviousOutput, ":")
		if !ok {
			return nil, fmt.Errorf("input %d: malformed previous output %q", i, in.PreviousOutput)
		}
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			return nil, fmt.Errorf("input %d: bad txid: %w", i, err)
		}
		index, err := strconv.ParseUint(vout, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("input %d: bad vout: %w", i, err)
		}

		txIn := wire.NewTxIn(wire.NewOutPoint(hash, uint32(index)), nil, nil)
		txIn.Sequence = in.Sequence
		tx.AddTxIn(txIn)
	}

	for i, out := range d.Output {
		script, err := hex.DecodeString(out.ScriptPubkey)
		if err != nil {
			return nil, fmt.Errorf("output %d: bad script: %w", i, err)
		}
		tx.AddTxOut(wire.NewTxOut(out.Value, script))
	}
	return tx, nil
}

func (s *Signer) keyByBtcAddress(address string) (*ecdsa.PrivateKey, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, err
	}
	params := crypto.BtcParams(s.isTestnet)
	for _, e := range entries {
		if e.info.KeyType != types.KeyTypeSecpEthAddr {
			continue
		}
		pub := crypto.UncompressedPubKey(e.priv)
		addr, err := crypto.BtcWitnessAddress(pub, params)
		if err != nil {
			return nil, err
		}
		if addr.EncodeAddress() == address {
			if !e.info.Enabled {
				return nil, fmt.Errorf("key for %s is disabled", address)
			}
			return e.priv, nil
		}
	}
	return nil, fmt.Errorf("no key for address %s", address)
}

// SignBtc computes the BIP-143 sighash of one input and signs it with the
// key behind address. The result is r || s || v.
func (s *Signer) SignBtc(address string, req *types.BtcSignRequest) ([]byte, error) {
	if req == nil || req.SigKind.Segwit == nil {
		return nil, fmt.Errorf("only segwit signatures are supported")
	}
	segwit := req.SigKind.Segwit
	if segwit.Sighash != "" && segwit.Sighash != "All" {
		return nil, fmt.Errorf("unsupported sighash %q", segwit.Sighash)
	}

	priv, err := s.keyByBtcAddress(address)
	if err != nil {
		return nil, err
	}

	tx, err := MsgTxFromDescriptor(&req.Tx)
	if err != nil {
		return nil, err
	}
	if segwit.InputIndex < 0 || segwit.InputIndex >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range", segwit.InputIndex)
	}

	scriptCode, err := hex.DecodeString(segwit.ScriptCode)
	if err != nil {
		return nil, fmt.Errorf("bad script code: %w", err)
	}

	// The script code must pay to the key we are about to sign with
	compressed, err := crypto.CompressPubKey(crypto.UncompressedPubKey(priv))
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(scriptCode, btcutil.Hash160(compressed)) {
		return nil, fmt.Errorf("script code does not match key for %s", address)
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(scriptCode, segwit.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	digest, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, txscript.SigHashAll, tx, segwit.InputIndex, segwit.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sighash: %w", err)
	}

	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign input: %w", err)
	}
	return sig, nil
}
