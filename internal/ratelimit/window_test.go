package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
	"github.com/verdantlabs/verdant/internal/clock"
	"github.com/verdantlabs/verdant/internal/config"
)

func newWindowHarness(t *testing.T, credits config.CreditsConfig) (*Window, *clock.FakeClock, *gorm.DB, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(&balancedomain.Balance{}, &balancedomain.TokenAccount{}, &Event{}); err != nil {
		t.Fatal(err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	w := NewWindow(WindowParams{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fc,
		Credits: config.NewStaticCreditsHolder(credits),
	})

	userID := node.Generate()
	err = conn.Exec(
		`INSERT INTO balances (user_id, trial_remaining, trial_used, subscription_status, created_at, updated_at)
		 VALUES (?, 3, 0, 'inactive', ?, ?)`,
		userID, fc.Now(), fc.Now(),
	).Error
	if err != nil {
		t.Fatal(err)
	}

	return w, fc, conn, userID
}

func TestWindow_AllowsUpToMaxThenDenies(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	w, fc, _, userID := newWindowHarness(t, credits)
	ctx := context.Background()

	for i := 0; i < credits.RateLimitMaxAttempts; i++ {
		assert.NoError(t, w.CheckAndRecord(ctx, userID))
	}

	err := w.CheckAndRecord(ctx, userID)
	var denied *DeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, 60, denied.RetryAfterSeconds())

	// Half the window later the wait shrinks accordingly.
	fc.Advance(30 * time.Second)
	err = w.CheckAndRecord(ctx, userID)
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, 30, denied.RetryAfterSeconds())
}

func TestWindow_RollsForward(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	w, fc, _, userID := newWindowHarness(t, credits)
	ctx := context.Background()

	assert.NoError(t, w.CheckAndRecord(ctx, userID))
	fc.Advance(20 * time.Second)
	assert.NoError(t, w.CheckAndRecord(ctx, userID))
	fc.Advance(20 * time.Second)
	assert.NoError(t, w.CheckAndRecord(ctx, userID))

	var denied *DeniedError
	assert.ErrorAs(t, w.CheckAndRecord(ctx, userID), &denied)

	// 21 seconds later the first event has aged out of the window.
	fc.Advance(21 * time.Second)
	assert.NoError(t, w.CheckAndRecord(ctx, userID))
}

func TestWindow_DeniedAttemptsDoNotExtendTheWindow(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	w, fc, _, userID := newWindowHarness(t, credits)
	ctx := context.Background()

	for i := 0; i < credits.RateLimitMaxAttempts; i++ {
		assert.NoError(t, w.CheckAndRecord(ctx, userID))
	}

	// Hammering while denied records nothing, so admission still arrives
	// when the original events age out.
	var denied *DeniedError
	for i := 0; i < 5; i++ {
		fc.Advance(10 * time.Second)
		assert.ErrorAs(t, w.CheckAndRecord(ctx, userID), &denied)
	}

	fc.Advance(11 * time.Second)
	assert.NoError(t, w.CheckAndRecord(ctx, userID))
}

func TestWindow_PerUserIsolation(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	w, _, conn, userID := newWindowHarness(t, credits)
	ctx := context.Background()

	for i := 0; i < credits.RateLimitMaxAttempts; i++ {
		assert.NoError(t, w.CheckAndRecord(ctx, userID))
	}
	var denied *DeniedError
	assert.ErrorAs(t, w.CheckAndRecord(ctx, userID), &denied)

	other := snowflake.ID(userID + 1)
	assert.NoError(t, conn.Exec(
		`INSERT INTO balances (user_id, trial_remaining, trial_used, subscription_status, created_at, updated_at)
		 VALUES (?, 3, 0, 'inactive', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		other,
	).Error)
	assert.NoError(t, w.CheckAndRecord(ctx, other))
}

func TestWindow_PurgeBefore(t *testing.T) {
	credits := config.DefaultCreditsConfig()
	w, fc, conn, userID := newWindowHarness(t, credits)
	ctx := context.Background()

	assert.NoError(t, w.CheckAndRecord(ctx, userID))
	fc.Advance(2 * time.Hour)
	assert.NoError(t, w.CheckAndRecord(ctx, userID))

	deleted, err := w.PurgeBefore(ctx, fc.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	assert.NoError(t, conn.Model(&Event{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
