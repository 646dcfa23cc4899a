package app

import (
	"context"

	"github.com/better-wallet/seedless/internal/audit"
	"github.com/better-wallet/seedless/internal/logger"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// VerifyPin checks pin against the PIN copy the next PIN unlock would open:
// the new PIN key once migrated, the legacy copy before.
func (s *UnlockService) VerifyPin(ctx context.Context, pin string) (bool, error) {
	state, err := s.migrator.State(ctx)
	if err != nil {
		return false, err
	}
	legacy := state != types.KeychainNewPinOnly && state != types.KeychainNewBoth
	return s.keychain.IsPinCorrect(ctx, pin, legacy)
}

// ChangePin re-encrypts the PIN copy of the encryption key. The wallet
// secret itself is untouched.
func (s *UnlockService) ChangePin(ctx context.Context, oldPin, newPin string) error {
	return s.changeFactors(ctx, types.AuditActionChangePin, func(ctx context.Context) error {
		return s.keychain.ChangePin(ctx, oldPin, newPin)
	})
}

// EnableBiometry adds the biometric copy of the encryption key and makes
// BIO the preferred access type
func (s *UnlockService) EnableBiometry(ctx context.Context, pin string) error {
	return s.changeFactors(ctx, types.AuditActionEnableBiometry, func(ctx context.Context) error {
		return s.keychain.EnableBiometry(ctx, pin)
	})
}

// DisableBiometry drops the biometric copy. The PIN copy must exist so the
// wallet stays reachable.
func (s *UnlockService) DisableBiometry(ctx context.Context) error {
	return s.changeFactors(ctx, types.AuditActionDisableBiometry, s.keychain.DisableBiometry)
}

// changeFactors runs op on a migrated keychain, serialized with migrations
func (s *UnlockService) changeFactors(ctx context.Context, action string, op func(context.Context) error) error {
	ctx = logger.WithWalletID(ctx, s.walletID)

	s.keyMu.Lock()
	err := s.requireMigrated(ctx)
	if err == nil {
		err = op(ctx)
	}
	s.keyMu.Unlock()

	s.audit.Record(ctx, audit.Event{Action: action}, err)
	if err != nil {
		return err
	}
	logger.Info(ctx, "keychain factors changed", "action", action)
	return nil
}

// Reset erases every factor, the access preference and the wallet secret,
// then locks the wallet
func (s *UnlockService) Reset(ctx context.Context) error {
	ctx = logger.WithWalletID(ctx, s.walletID)

	s.keyMu.Lock()
	s.Lock()
	err := s.keychain.ClearAll(ctx, []string{s.walletID})
	s.keyMu.Unlock()

	s.audit.Record(ctx, audit.Event{Action: types.AuditActionReset}, err)
	if err != nil {
		logger.Error(ctx, "failed to clear keychain", "error", err)
		return err
	}
	logger.Warn(ctx, "keychain cleared")
	return nil
}

func (s *UnlockService) requireMigrated(ctx context.Context) error {
	state, err := s.migrator.State(ctx)
	if err != nil {
		return err
	}
	if state != types.KeychainNewPinOnly && state != types.KeychainNewBoth {
		return apperrors.NewWithDetail(apperrors.ErrCodeNotMigrated, apperrors.ErrNotMigrated.Message, string(state), apperrors.ErrNotMigrated.StatusCode)
	}
	return nil
}
