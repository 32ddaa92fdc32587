package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
)

type adClaimsRepo struct {
	db dbtx
}

func (r *adClaimsRepo) CreateClaim(ctx context.Context, c domain.AdClaim) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ad_claims (nonce, user_id, placement, provider, device_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Nonce, c.UserID, c.Placement, c.Provider, c.DeviceHash, c.ExpiresAt.UTC(), time.Now().UTC())
	return mapConstraint(err)
}

func (r *adClaimsRepo) GetClaim(ctx context.Context, nonce string) (domain.AdClaim, error) {
	var c domain.AdClaim
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT nonce, user_id, placement, provider, device_hash, expires_at, used_at, created_at
		 FROM ad_claims WHERE nonce = ?`, nonce).
		Scan(&c.Nonce, &c.UserID, &c.Placement, &c.Provider, &c.DeviceHash, &c.ExpiresAt, &usedAt, &c.CreatedAt)
	if err != nil {
		return domain.AdClaim{}, mapNotFound(err)
	}
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}

// ConsumeClaim is the single-use gate: the used_at IS NULL predicate makes
// concurrent redemption attempts race for one row update.
func (r *adClaimsRepo) ConsumeClaim(ctx context.Context, nonce string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ad_claims SET used_at = ? WHERE nonce = ? AND used_at IS NULL`,
		at.UTC(), nonce)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "unknown nonce" from "already consumed".
		var exists int
		if err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM ad_claims WHERE nonce = ?`, nonce).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *adClaimsRepo) DeleteExpiredClaims(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM ad_claims WHERE expires_at < ?`, now.UTC())
	return err
}
