// Package domain contains persistence models for per-user funding balances.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents the billing state mirrored from the
// subscription provider. Only "active" bypasses countable balances.
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionActive, SubscriptionPastDue, SubscriptionCancelled:
		return true
	default:
		return false
	}
}

// Balance is the single source of truth for a user's trial credits and
// subscription state. Mutated only inside ledger transactions.
type Balance struct {
	UserID             snowflake.ID       `gorm:"primaryKey"`
	TrialRemaining     int64              `gorm:"not null;default:0;check:trial_remaining >= 0"`
	TrialUsed          int64              `gorm:"not null;default:0;check:trial_used >= 0"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:text;not null;default:'inactive'"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "balances" }

// TokenAccount tracks purchased tokens alongside lifetime totals.
type TokenAccount struct {
	UserID            snowflake.ID `gorm:"primaryKey"`
	Balance           int64        `gorm:"not null;default:0;check:balance >= 0"`
	LifetimePurchased int64        `gorm:"not null;default:0"`
	LifetimeConsumed  int64        `gorm:"not null;default:0"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenAccount) TableName() string { return "token_accounts" }

// Snapshot is the read model handed to authorization. It is a copy; holding
// one confers no lock and no write access.
type Snapshot struct {
	UserID             snowflake.ID       `json:"user_id"`
	TrialRemaining     int64              `json:"trial_remaining"`
	TrialUsed          int64              `json:"trial_used"`
	TokenBalance       int64              `json:"token_balance"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
}
