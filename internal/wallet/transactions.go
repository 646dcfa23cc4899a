package wallet

import (
	"context"
	"math/big"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/better-wallet/seedless/internal/crypto"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/signer"
	"github.com/better-wallet/seedless/pkg/types"
)

// SignEvmTransaction signs tx for chainID with the account's EVM key and
// returns the raw transaction hex.
func (w *SeedlessWallet) SignEvmTransaction(ctx context.Context, accountIndex int, tx *ethtypes.Transaction, chainID *big.Int) (raw string, err error) {
	defer func() { w.metrics.ObserveSignature("evm", err) }()

	address, err := w.evmAddress(accountIndex)
	if err != nil {
		return "", err
	}
	key, err := w.getSigningKeyByAddress(ctx, address)
	if err != nil {
		return "", err
	}

	s, err := signer.NewEVMSigner(w.session, key.KeyID, chainID)
	if err != nil {
		return "", err
	}
	return s.SignTransaction(ctx, tx)
}

// SignAvalancheTransaction signs the inputs of an X/P-chain transaction
// spendable by the account's X/P key.
func (w *SeedlessWallet) SignAvalancheTransaction(ctx context.Context, accountIndex int, tx signer.AvalancheTx) (out string, err error) {
	defer func() { w.metrics.ObserveSignature("avalanche", err) }()

	pub, err := w.GetPublicKey(accountIndex, types.VMTypeAVM)
	if err != nil {
		return "", err
	}
	key, err := w.getSigningKeyByTypeAndKey(ctx, func(kt types.KeyType) bool {
		return signer.KeyTypeSignsFor(kt, tx.VM())
	}, pub)
	if err != nil {
		return "", err
	}

	return signer.NewAvalancheSigner(w.session, key).SignTx(ctx, tx)
}

// SignSvmTransaction adds the account's Ed25519 signature to a Solana
// transaction and returns it as base64.
func (w *SeedlessWallet) SignSvmTransaction(ctx context.Context, accountIndex int, tx *solana.Transaction) (out string, err error) {
	defer func() { w.metrics.ObserveSignature("solana", err) }()

	pub, err := w.GetPublicKey(accountIndex, types.VMTypeSVM)
	if err != nil {
		return "", err
	}
	key, err := w.getSigningKeyByTypeAndKey(ctx, func(kt types.KeyType) bool {
		return kt == types.KeyTypeEd25519SolanaAddr
	}, pub)
	if err != nil {
		return "", err
	}

	return signer.NewSolanaSigner(w.session, key).SignTx(ctx, tx)
}

// SignBtcTransaction builds a PSBT from req, signs every input concurrently,
// validates the signatures and returns the finalized transaction hex.
func (w *SeedlessWallet) SignBtcTransaction(ctx context.Context, accountIndex int, req *types.BtcTransactionRequest, isTestnet bool) (raw string, err error) {
	defer func() { w.metrics.ObserveSignature("bitcoin", err) }()

	params := crypto.BtcParams(isTestnet)
	pub, err := w.publicKeyBytes(accountIndex, types.VMTypeBitcoin)
	if err != nil {
		return "", err
	}

	packet, err := signer.CreatePsbt(req, params)
	if err != nil {
		return "", err
	}

	signers := make([]*signer.BtcSigner, len(packet.UnsignedTx.TxIn))
	for i := range signers {
		if signers[i], err = signer.NewBtcSigner(w.session, pub, packet, i, req.Inputs, params); err != nil {
			return "", err
		}
	}

	sigs := make([][]byte, len(signers))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range signers {
		g.Go(func() error {
			sig, err := s.Sign(gctx)
			if err != nil {
				return err
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	compressed := signers[0].PublicKey()
	if err := signer.AttachSignatures(packet, compressed, sigs); err != nil {
		return "", err
	}
	if err := signer.ValidateSignatures(packet); err != nil {
		logger.Error(ctx, "bitcoin signatures failed validation", "error", err, "inputs", len(sigs))
		return "", err
	}

	return signer.FinalizeAndExtract(packet)
}
