package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
)

type ledgerRepo struct {
	db dbtx
}

func (r *ledgerRepo) CreateEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger (id, user_id, amount, reason, ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount, e.Reason, mapStringNull(e.Ref), time.Now().UTC())
	return mapConstraint(err)
}

func (r *ledgerRepo) ListEntriesByUser(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, reason, ref, created_at
		 FROM ledger WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ref sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &ref, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Ref = mapNullString(ref)
		out = append(out, e)
	}
	return out, rows.Err()
}
