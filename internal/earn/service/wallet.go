package service

import (
	"context"
	"fmt"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/idx"
)

// WalletService reads balances and moves coins outside the reward flow.
type WalletService struct {
	Store store.Store
}

func (s *WalletService) Balance(ctx context.Context, userID string) (domain.Wallet, error) {
	w, err := s.Store.Wallets().GetWallet(ctx, userID)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to load wallet: %w", err)
	}
	return w, nil
}

func (s *WalletService) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	entries, err := s.Store.Ledger().ListEntriesByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// Adjust applies an admin balance adjustment and records it in the ledger.
// The delta may be negative.
func (s *WalletService) Adjust(ctx context.Context, userID string, delta int64, reason string) (int64, error) {
	if reason == "" {
		reason = domain.LedgerReasonAdjustment
	}

	var balance int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		balance, err = tx.Wallets().AddBalance(ctx, userID, delta)
		if err != nil {
			return fmt.Errorf("failed to adjust wallet: %w", err)
		}
		return tx.Ledger().CreateEntry(ctx, domain.LedgerEntry{
			ID:     idx.New().String(),
			UserID: userID,
			Amount: delta,
			Reason: reason,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
