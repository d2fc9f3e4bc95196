package upstream

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy is an explicit bounded-retry policy for upstream calls.
// It is passed into the client rather than hidden in transport middleware
// so the schedule and the retryable predicate are independently testable.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries transient failures up to 3 attempts with
// exponential backoff capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// RetryableStatus reports whether an HTTP status is transient. Rate limits
// and server errors are retryable; other 4xx are not — auth expiry is
// handled separately by the token refresh path.
func (p RetryPolicy) RetryableStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}

// Delay computes the backoff before the given attempt (0-based). A
// Retry-After header value, when present and parseable, overrides the
// exponential schedule.
func (p RetryPolicy) Delay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			if d > p.MaxDelay {
				return p.MaxDelay
			}
			return d
		}
	}

	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
