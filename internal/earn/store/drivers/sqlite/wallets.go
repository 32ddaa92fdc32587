package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
)

type walletsRepo struct {
	db dbtx
}

func (r *walletsRepo) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, balance, updated_at FROM wallets WHERE user_id = ?`, userID).
		Scan(&w.UserID, &w.Balance, &w.UpdatedAt)
	if err != nil {
		return domain.Wallet{}, mapNotFound(err)
	}
	return w, nil
}

func (r *walletsRepo) CreateWallet(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at) VALUES (?, 0, ?)`,
		userID, time.Now().UTC())
	return mapConstraint(err)
}

func (r *walletsRepo) AddBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + ?, updated_at = ? WHERE user_id = ?`,
		delta, time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}

	var balance int64
	err = r.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return balance, nil
}

// requireRow maps a zero-row update/delete to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
