package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetBalance(ctx context.Context, userID snowflake.ID) (*Snapshot, error)

	// CreditTokens is the purchase/webhook entry point.
	CreditTokens(ctx context.Context, userID snowflake.ID, amount int64) (*Snapshot, error)

	// SetSubscriptionStatus mirrors subscription lifecycle changes reported
	// by the billing provider.
	SetSubscriptionStatus(ctx context.Context, userID snowflake.ID, status SubscriptionStatus) (*Snapshot, error)
}
