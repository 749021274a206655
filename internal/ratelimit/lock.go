package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker provides a best-effort distributed mutex over redis. The janitor
// uses it so only one replica purges expired window events at a time.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// Acquire returns a release token when the lock is taken, or empty when it
// is already held elsewhere.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l == nil || l.client == nil {
		// Without redis there is nothing to coordinate against; behave
		// as if the lock was granted.
		return uuid.NewString(), nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release deletes the lock only when it still holds the caller's token.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
