package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/signer"
	"github.com/better-wallet/seedless/internal/validation"
	"github.com/better-wallet/seedless/internal/wallet"
	"github.com/better-wallet/seedless/pkg/types"
)

// activeWallet returns the unlocked wallet after checking the account index
func (s *Server) activeWallet(w http.ResponseWriter, r *http.Request, accountIndex int) (*wallet.SeedlessWallet, bool) {
	if err := validation.ValidateAccountIndex(accountIndex); err != nil {
		s.writeAppError(w, badRequest("Invalid account index", err))
		return nil, false
	}
	active, err := s.walletService.Wallet()
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return active, true
}

// handleSignMessage signs a dapp message (eth_sign, personal_sign, typed data, avalanche_signMessage)
func (s *Server) handleSignMessage(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req wallet.MessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active, ok := s.activeWallet(w, r, req.AccountIndex)
	if !ok {
		return
	}
	req.IsTestnet = s.config.IsTestnet

	sig, err := active.SignMessage(r.Context(), req)
	s.audit.Record(r.Context(), audit.Event{
		Action:   types.AuditActionSignMessage,
		Metadata: map[string]any{"method": req.Method, "account_index": req.AccountIndex},
	}, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "message signed", "method", req.Method, "account_index", req.AccountIndex)
	s.writeJSON(w, http.StatusOK, SignMessageResponse{Signature: sig})
}

// handleSignEvm completes, validates and signs an EVM transaction
func (s *Server) handleSignEvm(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req SignEvmRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active, ok := s.activeWallet(w, r, req.AccountIndex)
	if !ok {
		return
	}

	tx, err := s.buildEvmTransaction(r, active, req)
	if err != nil {
		s.writeAppError(w, badRequest("Failed to prepare transaction", err))
		return
	}
	if err := validation.ValidateEvmTransaction(tx, tx.ChainId().Int64(), s.txValidation); err != nil {
		s.writeAppError(w, badRequest("Invalid transaction", err))
		return
	}

	raw, err := active.SignEvmTransaction(r.Context(), req.AccountIndex, tx, tx.ChainId())
	var resp SignedTransactionResponse
	if err == nil {
		resp.SignedTransaction = raw
		if b, derr := hexutil.Decode(raw); derr == nil {
			var signed ethtypes.Transaction
			if signed.UnmarshalBinary(b) == nil {
				resp.Hash = signed.Hash().Hex()
			}
		}
	}
	s.audit.Record(r.Context(), audit.Event{
		Action:   types.AuditActionSignTransaction,
		TxHash:   resp.Hash,
		Metadata: map[string]any{"vm": types.VMTypeEVM, "account_index": req.AccountIndex, "chain_id": tx.ChainId().String()},
	}, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "evm transaction signed",
		"account_index", req.AccountIndex,
		"chain_id", tx.ChainId().String(),
		"tx_hash", resp.Hash,
	)
	s.writeJSON(w, http.StatusOK, resp)
}

// buildEvmTransaction fills missing fields from the node when one is
// configured, otherwise requires a complete request
func (s *Server) buildEvmTransaction(r *http.Request, active *wallet.SeedlessWallet, req SignEvmRequest) (*ethtypes.Transaction, error) {
	if s.txFiller == nil || req.Transaction.Complete() {
		return req.Transaction.Build()
	}
	addrs, err := active.GetAddresses(req.AccountIndex, s.config.IsTestnet)
	if err != nil {
		return nil, err
	}
	return s.txFiller.Fill(r.Context(), common.HexToAddress(addrs[types.VMTypeEVM]), &req.Transaction)
}

// handleSignAvalanche signs an X/P-chain transaction
func (s *Server) handleSignAvalanche(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req SignAvalancheRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active, ok := s.activeWallet(w, r, req.AccountIndex)
	if !ok {
		return
	}

	tx, err := signer.ParseAvalancheTx(req.VM, req.Transaction, req.UTXOs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	signed, err := active.SignAvalancheTransaction(r.Context(), req.AccountIndex, tx)
	var hash string
	if err == nil {
		hash = tx.ID().String()
	}
	s.audit.Record(r.Context(), audit.Event{
		Action:   types.AuditActionSignTransaction,
		TxHash:   hash,
		Metadata: map[string]any{"vm": req.VM, "account_index": req.AccountIndex},
	}, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "avalanche transaction signed", "account_index", req.AccountIndex, "vm", req.VM, "tx_id", hash)
	s.writeJSON(w, http.StatusOK, SignedTransactionResponse{SignedTransaction: signed, Hash: hash})
}

// handleSignSolana adds the account's signature to a Solana transaction
func (s *Server) handleSignSolana(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req SignSolanaRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active, ok := s.activeWallet(w, r, req.AccountIndex)
	if !ok {
		return
	}

	tx, err := signer.ParseSolanaTx(req.Transaction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	signed, err := active.SignSvmTransaction(r.Context(), req.AccountIndex, tx)
	var hash string
	if err == nil && len(tx.Signatures) > 0 && !tx.Signatures[0].IsZero() {
		hash = tx.Signatures[0].String()
	}
	s.audit.Record(r.Context(), audit.Event{
		Action:   types.AuditActionSignTransaction,
		TxHash:   hash,
		Metadata: map[string]any{"vm": types.VMTypeSVM, "account_index": req.AccountIndex},
	}, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "solana transaction signed", "account_index", req.AccountIndex, "signature", hash)
	s.writeJSON(w, http.StatusOK, SignedTransactionResponse{SignedTransaction: signed, Hash: hash})
}

// handleSignBtc builds, signs and finalizes a Bitcoin transaction
func (s *Server) handleSignBtc(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req SignBtcRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateBtcTransactionRequest(&req.Transaction); err != nil {
		s.writeAppError(w, badRequest("Invalid transaction", err))
		return
	}
	active, ok := s.activeWallet(w, r, req.AccountIndex)
	if !ok {
		return
	}

	raw, err := active.SignBtcTransaction(r.Context(), req.AccountIndex, &req.Transaction, s.config.IsTestnet)
	s.audit.Record(r.Context(), audit.Event{
		Action:   types.AuditActionSignTransaction,
		Metadata: map[string]any{"vm": types.VMTypeBitcoin, "account_index": req.AccountIndex, "inputs": len(req.Transaction.Inputs)},
	}, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.Info(r.Context(), "bitcoin transaction signed",
		"account_index", req.AccountIndex,
		"inputs", len(req.Transaction.Inputs),
	)
	s.writeJSON(w, http.StatusOK, SignedTransactionResponse{SignedTransaction: raw})
}
