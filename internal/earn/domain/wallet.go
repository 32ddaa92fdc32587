package domain

import "time"

type Wallet struct {
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// LedgerEntry is one immutable wallet movement. The wallet balance is the
// running sum of a user's entries.
type LedgerEntry struct {
	ID     string
	UserID string
	Amount int64
	Reason string
	// Ref links the entry to its source, e.g. the ad session nonce.
	Ref       string
	CreatedAt time.Time
}

// Ledger reasons.
const (
	LedgerReasonAdReward    = "ad_reward"
	LedgerReasonAdjustment  = "adjustment"
	LedgerReasonAdminCredit = "admin_credit"
)
