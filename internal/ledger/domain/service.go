package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
)

// DebitRequest asks to authorize and charge one action. Cost zero means
// "use the configured cost for the action".
type DebitRequest struct {
	UserID   snowflake.ID           `json:"user_id"`
	Action   string                 `json:"action"`
	Cost     int64                  `json:"cost"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DebitReceipt reports a committed debit along with the balances left
// after it.
type DebitReceipt struct {
	AttemptID snowflake.ID            `json:"attempt_id"`
	Source    FundingSource           `json:"funding_source"`
	Cost      int64                   `json:"cost"`
	Balance   *balancedomain.Snapshot `json:"balance"`
}

// RefundReceipt reports the outcome of a refund call. AlreadyRefunded is
// true when this call was a no-op replay.
type RefundReceipt struct {
	AttemptID       snowflake.ID            `json:"attempt_id"`
	Source          FundingSource           `json:"funding_source"`
	Cost            int64                   `json:"cost"`
	AlreadyRefunded bool                    `json:"already_refunded"`
	Balance         *balancedomain.Snapshot `json:"balance"`
}

type Service interface {
	// AuthorizeAndDebit runs the rate limit check, resolves a funding
	// source, and atomically charges it, recording the attempt.
	AuthorizeAndDebit(ctx context.Context, req DebitRequest) (*DebitReceipt, error)

	// Refund reverses a debited attempt. Idempotent: refunding an already
	// refunded attempt changes nothing and reports AlreadyRefunded.
	Refund(ctx context.Context, attemptID snowflake.ID) (*RefundReceipt, error)
}
