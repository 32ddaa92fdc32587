package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
)

type adRewardsRepo struct {
	db dbtx
}

func (r *adRewardsRepo) CreateReward(ctx context.Context, reward domain.AdReward) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ad_rewards (id, user_id, nonce, provider, provider_tx, amount, device_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reward.ID, reward.UserID, reward.Nonce, reward.Provider,
		mapStringNull(reward.ProviderTx), reward.Amount, reward.DeviceHash, time.Now().UTC())
	return mapConstraint(err)
}

func (r *adRewardsRepo) RewardExistsByProviderTx(ctx context.Context, providerTx string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_rewards WHERE provider_tx = ?`, providerTx).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *adRewardsRepo) CountUserRewardsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_rewards WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC()).Scan(&count)
	return count, err
}

func (r *adRewardsRepo) CountDeviceRewardsSince(ctx context.Context, deviceHash string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_rewards WHERE device_hash = ? AND device_hash != '' AND created_at >= ?`,
		deviceHash, since.UTC()).Scan(&count)
	return count, err
}

func (r *adRewardsRepo) LatestUserReward(ctx context.Context, userID string) (domain.AdReward, error) {
	var reward domain.AdReward
	var tx sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, nonce, provider, provider_tx, amount, device_hash, created_at
		 FROM ad_rewards WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT 1`, userID).
		Scan(&reward.ID, &reward.UserID, &reward.Nonce, &reward.Provider, &tx, &reward.Amount, &reward.DeviceHash, &reward.CreatedAt)
	if err != nil {
		return domain.AdReward{}, mapNotFound(err)
	}
	reward.ProviderTx = mapNullString(tx)
	return reward, nil
}
