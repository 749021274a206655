package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists attempt rows. Methods take the caller's *gorm.DB so
// attempt writes share the transaction that moved the balances.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, attempt *Attempt) error

	// FindForUpdate loads an attempt under an exclusive row lock. Returns
	// nil when no attempt with that id exists.
	FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Attempt, error)

	// MarkRefunded flips the attempt to refunded and stamps the time.
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
