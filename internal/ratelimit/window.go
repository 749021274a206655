// Package ratelimit throttles the debit entry point. The DB rolling window
// is authoritative; the redis token bucket is an optional edge throttle.
package ratelimit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/verdantlabs/verdant/internal/clock"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event is one recorded debit attempt. Rows are ephemeral; the janitor
// purges them once they age out of the window.
type Event struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	UserID      snowflake.ID `gorm:"not null;index:idx_rate_limit_events_user_time,priority:1"`
	AttemptedAt time.Time    `gorm:"not null;index:idx_rate_limit_events_user_time,priority:2"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "rate_limit_events" }

type WindowParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Credits *config.CreditsHolder
}

// Window counts attempts in a trailing window. The window rolls: a blocked
// caller is admitted as soon as the oldest qualifying attempt ages out, not
// at a fixed bucket boundary.
type Window struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	credits *config.CreditsHolder
}

func NewWindow(p WindowParams) *Window {
	return &Window{
		db:      p.DB,
		log:     p.Log.Named("ratelimit.window"),
		genID:   p.GenID,
		clock:   p.Clock,
		credits: p.Credits,
	}
}

// CheckAndRecord admits or denies one attempt and records admitted ones.
// It commits its own transaction so the event survives regardless of the
// outcome of the debit that follows: every admitted call counts toward the
// limit, whether the debit lands, is denied, or the action later fails.
// The user's balance row is locked first so concurrent attempts by the same
// user serialize and cannot both observe a not-yet-full window.
func (w *Window) CheckAndRecord(ctx context.Context, userID snowflake.ID) error {
	cfg := w.credits.Current()
	window := cfg.RateLimitWindow()
	max := cfg.RateLimitMaxAttempts

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := w.clock.Now()
		cutoff := now.Add(-window)

		// Serialization anchor. A user with no balance row has nothing to
		// debit; skipping the lock is harmless there.
		var anchor snowflake.ID
		if err := tx.WithContext(ctx).Raw(
			`SELECT user_id FROM balances WHERE user_id = ?`+db.LockingClause(tx),
			userID,
		).Scan(&anchor).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM rate_limit_events
			 WHERE user_id = ? AND attempted_at > ?`,
			userID,
			cutoff,
		).Scan(&count).Error; err != nil {
			return err
		}

		if count >= int64(max) {
			var oldest Event
			if err := tx.WithContext(ctx).Raw(
				`SELECT attempted_at FROM rate_limit_events
				 WHERE user_id = ? AND attempted_at > ?
				 ORDER BY attempted_at ASC
				 LIMIT 1`,
				userID,
				cutoff,
			).Scan(&oldest).Error; err != nil {
				return err
			}
			return &DeniedError{RetryAfter: oldest.AttemptedAt.Add(window).Sub(now)}
		}

		return tx.WithContext(ctx).Exec(
			`INSERT INTO rate_limit_events (id, user_id, attempted_at) VALUES (?, ?, ?)`,
			w.genID.Generate(),
			userID,
			now,
		).Error
	})
}

// PurgeBefore deletes events older than cutoff. Housekeeping only; the
// window query already filters by time.
func (w *Window) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := w.db.WithContext(ctx).Exec(
		`DELETE FROM rate_limit_events WHERE attempted_at < ?`,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
