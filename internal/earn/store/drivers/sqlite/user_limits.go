package sqlite

import (
	"context"
	"time"
)

type userLimitsRepo struct {
	db dbtx
}

func (r *userLimitsRepo) GetViews(ctx context.Context, userID, day string) (int, error) {
	var views int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(
			(SELECT views FROM user_limits WHERE user_id = ? AND day = ?), 0)`,
		userID, day).Scan(&views)
	return views, err
}

func (r *userLimitsRepo) IncrementViews(ctx context.Context, userID, day string) (int, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_limits (user_id, day, views, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (user_id, day)
		 DO UPDATE SET views = views + 1, updated_at = excluded.updated_at`,
		userID, day, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return r.GetViews(ctx, userID, day)
}

func (r *userLimitsRepo) DeleteOldBuckets(ctx context.Context, beforeDay string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_limits WHERE day < ?`, beforeDay)
	return err
}
