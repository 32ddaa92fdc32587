package domain

import "time"

// AdClaim is a one-time grant to watch a rewarded ad, minted at prepare time
// and consumed exactly once at redemption.
type AdClaim struct {
	Nonce      string
	UserID     string
	Placement  string
	Provider   string
	DeviceHash string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// Used reports whether the claim has already been redeemed.
func (c AdClaim) Used() bool { return c.UsedAt != nil }

// Expired reports whether the claim can no longer be redeemed.
func (c AdClaim) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// AdReward is a credited ad view. ProviderTx carries the provider's
// transaction id for server-verified rewards and dedupes replayed callbacks.
type AdReward struct {
	ID         string
	UserID     string
	Nonce      string
	Provider   string
	ProviderTx string
	Amount     int64
	DeviceHash string
	CreatedAt  time.Time
}
