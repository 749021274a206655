package ratelimit

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/verdantlabs/verdant/internal/clock"
)

const (
	janitorInterval = 10 * time.Minute
	janitorLockKey  = "verdant:janitor:rate_limit_events"
	janitorLockTTL  = 5 * time.Minute

	// Events older than this can never influence a window decision again.
	eventRetention = time.Hour
)

// Janitor periodically deletes rate limit events that fell out of the
// rolling window. Deletion is bookkeeping only; window correctness never
// depends on it.
type Janitor struct {
	window *Window
	locker *Locker
	clock  clock.Clock
	log    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type JanitorParams struct {
	fx.In

	Window *Window
	Locker *Locker `optional:"true"`
	Clock  clock.Clock
	Log    *zap.Logger
}

func NewJanitor(p JanitorParams) *Janitor {
	return &Janitor{
		window: p.Window,
		locker: p.Locker,
		clock:  p.Clock,
		log:    p.Log.Named("ratelimit.janitor"),
	}
}

func RegisterJanitor(lc fx.Lifecycle, j *Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			j.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			j.Stop(ctx)
			return nil
		},
	})
}

func (j *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()
}

func (j *Janitor) Stop(ctx context.Context) {
	if j.cancel == nil {
		return
	}
	j.cancel()
	select {
	case <-j.done:
	case <-ctx.Done():
	}
}

func (j *Janitor) runOnce(ctx context.Context) {
	token, err := j.locker.Acquire(ctx, janitorLockKey, janitorLockTTL)
	if err != nil {
		j.log.Warn("janitor lock acquire failed", zap.Error(err))
		return
	}
	if token == "" {
		return
	}
	defer func() {
		if err := j.locker.Release(ctx, janitorLockKey, token); err != nil {
			j.log.Warn("janitor lock release failed", zap.Error(err))
		}
	}()

	cutoff := j.clock.Now().Add(-eventRetention)
	deleted, err := j.window.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.log.Error("rate limit event purge failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.log.Info("purged rate limit events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
