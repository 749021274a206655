package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/verdantlabs/verdant/internal/config"
)

// EdgeLimiter throttles per-user authorize traffic at the HTTP layer before
// it reaches the database window. It fails open: a redis outage never blocks
// authorization, it only removes the first line of defense.
type EdgeLimiter struct {
	bucket  *TokenBucket
	credits *config.CreditsHolder
	log     *zap.Logger
}

type EdgeParams struct {
	fx.In

	Config  config.Config
	Credits *config.CreditsHolder
	Log     *zap.Logger
}

func NewRedisClient(cfg config.Config, lc fx.Lifecycle) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewEdgeLimiter(p EdgeParams, client *redis.Client) *EdgeLimiter {
	if client == nil {
		p.Log.Info("edge rate limiter disabled, redis not configured")
		return nil
	}
	return &EdgeLimiter{
		bucket:  NewTokenBucket(client),
		credits: p.Credits,
		log:     p.Log.Named("ratelimit.edge"),
	}
}

// Allow reports whether the user may proceed past the edge. Errors talking
// to redis are logged and treated as allowed.
func (e *EdgeLimiter) Allow(ctx context.Context, userID string) (bool, time.Duration) {
	if e == nil {
		return true, 0
	}
	cfg := e.credits.Current()
	window := cfg.RateLimitWindow().Seconds()
	if window <= 0 {
		return true, 0
	}
	rate := float64(cfg.RateLimitMaxAttempts) / window
	key := fmt.Sprintf("verdant:edge:%s", userID)
	res, err := e.bucket.Allow(ctx, key, rate, cfg.RateLimitMaxAttempts)
	if err != nil {
		e.log.Warn("edge rate limit check failed", zap.Error(err))
		return true, 0
	}
	return res.Allowed, res.RetryAfter
}
