package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/verdantlabs/verdant/internal/balance/domain"
	"github.com/verdantlabs/verdant/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Seed(ctx context.Context, conn *gorm.DB, userID snowflake.ID, trialGrant int64) error {
	if trialGrant < 0 {
		return domain.ErrInvalidAmount
	}
	now := time.Now().UTC()
	if err := conn.WithContext(ctx).Exec(
		`INSERT INTO balances (user_id, trial_remaining, trial_used, subscription_status, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)`,
		userID,
		trialGrant,
		domain.SubscriptionInactive,
		now,
		now,
	).Error; err != nil {
		return err
	}
	return conn.WithContext(ctx).Exec(
		`INSERT INTO token_accounts (user_id, balance, lifetime_purchased, lifetime_consumed, created_at, updated_at)
		 VALUES (?, 0, 0, 0, ?, ?)`,
		userID,
		now,
		now,
	).Error
}

func (r *repo) SnapshotForUpdate(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*domain.Snapshot, error) {
	return r.snapshot(ctx, conn, userID, db.LockingClause(conn))
}

func (r *repo) Snapshot(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*domain.Snapshot, error) {
	return r.snapshot(ctx, conn, userID, "")
}

func (r *repo) snapshot(ctx context.Context, conn *gorm.DB, userID snowflake.ID, locking string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	err := conn.WithContext(ctx).Raw(
		`SELECT b.user_id, b.trial_remaining, b.trial_used, b.subscription_status, t.balance AS token_balance
		 FROM balances b
		 JOIN token_accounts t ON t.user_id = b.user_id
		 WHERE b.user_id = ?`+locking,
		userID,
	).Scan(&snap).Error
	if err != nil {
		return nil, err
	}
	if snap.UserID == 0 {
		return nil, nil
	}
	return &snap, nil
}

func (r *repo) DebitTrial(ctx context.Context, conn *gorm.DB, userID snowflake.ID, amount int64) error {
	if amount < 1 {
		return domain.ErrInvalidAmount
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE balances
		 SET trial_remaining = trial_remaining - ?,
		     trial_used = trial_used + ?,
		     updated_at = ?
		 WHERE user_id = ? AND trial_remaining >= ?`,
		amount,
		amount,
		time.Now().UTC(),
		userID,
		amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *repo) DebitTokens(ctx context.Context, conn *gorm.DB, userID snowflake.ID, amount int64) error {
	if amount < 1 {
		return domain.ErrInvalidAmount
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE token_accounts
		 SET balance = balance - ?,
		     lifetime_consumed = lifetime_consumed + ?,
		     updated_at = ?
		 WHERE user_id = ? AND balance >= ?`,
		amount,
		amount,
		time.Now().UTC(),
		userID,
		amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *repo) CreditTrial(ctx context.Context, conn *gorm.DB, userID snowflake.ID, amount int64) error {
	if amount < 1 {
		return domain.ErrInvalidAmount
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE balances
		 SET trial_remaining = trial_remaining + ?,
		     trial_used = trial_used - ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (r *repo) CreditTokens(ctx context.Context, conn *gorm.DB, userID snowflake.ID, amount int64) error {
	if amount < 1 {
		return domain.ErrInvalidAmount
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE token_accounts
		 SET balance = balance + ?,
		     lifetime_consumed = lifetime_consumed - ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (r *repo) AddPurchasedTokens(ctx context.Context, conn *gorm.DB, userID snowflake.ID, amount int64) error {
	if amount < 1 {
		return domain.ErrInvalidAmount
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE token_accounts
		 SET balance = balance + ?,
		     lifetime_purchased = lifetime_purchased + ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (r *repo) SetSubscriptionStatus(ctx context.Context, conn *gorm.DB, userID snowflake.ID, status domain.SubscriptionStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	result := conn.WithContext(ctx).Exec(
		`UPDATE balances
		 SET subscription_status = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		status,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}
