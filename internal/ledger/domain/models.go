// Package domain defines the attempt ledger and funding resolution rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// FundingSource identifies which pool paid for an attempt. Resolution
// order is fixed: subscription, then trial, then token.
type FundingSource string

const (
	SourceSubscription FundingSource = "subscription"
	SourceTrial        FundingSource = "trial"
	SourceToken        FundingSource = "token"
)

func (s FundingSource) Valid() bool {
	switch s {
	case SourceSubscription, SourceTrial, SourceToken:
		return true
	}
	return false
}

type AttemptStatus string

const (
	StatusDebited  AttemptStatus = "debited"
	StatusRefunded AttemptStatus = "refunded"
)

// Attempt is the ledger row for a successful debit. Denied authorizations
// never produce one.
type Attempt struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	UserID        snowflake.ID      `gorm:"not null;index:idx_attempts_user"`
	Action        string            `gorm:"type:text;not null"`
	Cost          int64             `gorm:"not null;check:cost >= 1"`
	FundingSource FundingSource     `gorm:"type:text;not null"`
	Status        AttemptStatus     `gorm:"type:text;not null;default:'debited'"`
	Metadata      datatypes.JSONMap `gorm:"type:json"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	RefundedAt    *time.Time
}

// TableName sets the database table name.
func (Attempt) TableName() string { return "attempts" }
