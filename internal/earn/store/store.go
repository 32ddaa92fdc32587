package store

import (
	"context"
	"errors"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to make nested transactions impossible by construction.
type Store interface {
	Users() Users
	Wallets() Wallets
	Ledger() Ledger
	AdClaims() AdClaims
	AdRewards() AdRewards
	UserLimits() UserLimits

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to do multi-step writes (redemption is one).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetAdmin grants or revokes the admin flag.
	SetAdmin(ctx context.Context, userID string, admin bool) error

	// UpdateRecoverySecret sets the TOTP secret for the admin restore flow.
	UpdateRecoverySecret(ctx context.Context, userID string, secret string) error

	// DeleteUser cascades to wallets, ledger and reward records (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns all users ordered by creation date (newest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Wallets interface {
	// GetWallet returns a user's wallet.
	GetWallet(ctx context.Context, userID string) (domain.Wallet, error)

	// CreateWallet initialises a zero-balance wallet for a user.
	CreateWallet(ctx context.Context, userID string) error

	// AddBalance applies a delta and returns the new balance. Use inside a
	// transaction together with the matching ledger entry.
	AddBalance(ctx context.Context, userID string, delta int64) (int64, error)
}

type Ledger interface {
	// CreateEntry appends an immutable wallet movement.
	CreateEntry(ctx context.Context, e domain.LedgerEntry) error

	// ListEntriesByUser returns a user's most recent entries, newest first.
	ListEntriesByUser(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
}

type AdClaims interface {
	// CreateClaim stores a freshly minted one-time claim.
	CreateClaim(ctx context.Context, c domain.AdClaim) error

	// GetClaim returns a claim by nonce.
	GetClaim(ctx context.Context, nonce string) (domain.AdClaim, error)

	// ConsumeClaim marks a claim used. It fails with ErrAlreadyExists when
	// the claim was already consumed, making redemption single-use even
	// under concurrent attempts.
	ConsumeClaim(ctx context.Context, nonce string, at time.Time) error

	// DeleteExpiredClaims is housekeeping.
	DeleteExpiredClaims(ctx context.Context, now time.Time) error
}

type AdRewards interface {
	// CreateReward records a credited view. The nonce column is unique, so a
	// second credit for the same session fails with ErrAlreadyExists.
	CreateReward(ctx context.Context, r domain.AdReward) error

	// RewardExistsByProviderTx reports whether a provider transaction id was
	// already credited (server-callback replay protection).
	RewardExistsByProviderTx(ctx context.Context, providerTx string) (bool, error)

	// CountUserRewardsSince counts a user's credited views since a cutoff.
	CountUserRewardsSince(ctx context.Context, userID string, since time.Time) (int, error)

	// CountDeviceRewardsSince counts credited views for a device since a cutoff.
	CountDeviceRewardsSince(ctx context.Context, deviceHash string, since time.Time) (int, error)

	// LatestUserReward returns the user's most recent credited view.
	LatestUserReward(ctx context.Context, userID string) (domain.AdReward, error)
}

type UserLimits interface {
	// GetViews returns the view counter for a user's day bucket, zero when
	// the bucket does not exist yet.
	GetViews(ctx context.Context, userID, day string) (int, error)

	// IncrementViews bumps the day bucket, creating it as needed, and
	// returns the new count.
	IncrementViews(ctx context.Context, userID, day string) (int, error)

	// DeleteOldBuckets removes buckets older than the given day key.
	DeleteOldBuckets(ctx context.Context, beforeDay string) error
}
