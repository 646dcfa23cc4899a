package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/better-wallet/seedless/internal/eth"
	"github.com/better-wallet/seedless/internal/wallet"
	"github.com/better-wallet/seedless/pkg/types"
)

// WalletService is the subset of app.UnlockService used by the API layer.
// It is an interface to allow handler-level unit tests without storage.
type WalletService interface {
	Unlock(ctx context.Context, access types.AccessType, pin string) (*wallet.SeedlessWallet, error)
	Lock()
	Wallet() (*wallet.SeedlessWallet, error)

	MigrationStatus(ctx context.Context, access types.AccessType) (types.MigrationStatus, error)
	KeychainState(ctx context.Context) (types.KeychainState, error)

	VerifyPin(ctx context.Context, pin string) (bool, error)
	ChangePin(ctx context.Context, oldPin, newPin string) error
	EnableBiometry(ctx context.Context, pin string) error
	DisableBiometry(ctx context.Context) error
	Reset(ctx context.Context) error

	AddAccount(ctx context.Context, accountIndex int) (*wallet.SeedlessWallet, error)
	DeriveMissingKeys(ctx context.Context) (*wallet.SeedlessWallet, error)
}

// TxFiller completes partial EVM transaction requests from a node.
// *eth.Client implements it.
type TxFiller interface {
	Fill(ctx context.Context, from common.Address, req *eth.TxRequest) (*ethtypes.Transaction, error)
}
