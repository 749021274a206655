package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// DeniedError is the typed business outcome for a throttled debit attempt.
// It is a result, not a fault: callers surface retry_after to the user.
type DeniedError struct {
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rate_limited: retry after %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait up to whole seconds, minimum 1.
func (e *DeniedError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
