package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository mutates balance rows. Every method takes the caller's *gorm.DB
// so debits and credits compose into the caller's transaction.
type Repository interface {
	// Seed creates the balance and token account rows for a new user.
	Seed(ctx context.Context, db *gorm.DB, userID snowflake.ID, trialGrant int64) error

	// SnapshotForUpdate reads the user's balances under an exclusive row
	// lock. Returns nil when the user has no balance row.
	SnapshotForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Snapshot, error)

	// Snapshot reads balances without locking. For read-only surfaces.
	Snapshot(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Snapshot, error)

	DebitTrial(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) error
	DebitTokens(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) error

	// CreditTrial reverses a trial debit. The counter may exceed the
	// original grant; refunds accumulate rather than cap.
	CreditTrial(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) error

	// CreditTokens reverses a token debit.
	CreditTokens(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) error

	// AddPurchasedTokens applies a completed purchase.
	AddPurchasedTokens(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) error

	SetSubscriptionStatus(ctx context.Context, db *gorm.DB, userID snowflake.ID, status SubscriptionStatus) error
}
