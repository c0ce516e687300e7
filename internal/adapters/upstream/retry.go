package upstream

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"

	"xdownloader/internal/domain"
)

// RetryPolicy holds the retry settings of one lookup.
type RetryPolicy struct {
	MaxRetries     int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	// RetryRejected retries success=false answers like transport failures.
	RetryRejected bool
}

// DefaultRetryPolicy returns 3 retries with delays uniform in [1s, 1.5s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		MinDelay:       1000 * time.Millisecond,
		MaxDelay:       1500 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
		RetryRejected:  true,
	}
}

// Backoff builds a fresh backoff. Each lookup must get its own: the retry
// budget is per call.
func (p RetryPolicy) Backoff() retry.Backoff {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), JitterBackoff(p.MinDelay, p.MaxDelay))
}

// Retryable reports whether err is worth another attempt.
func (p RetryPolicy) Retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return true
	case errors.Is(err, domain.ErrUpstreamRejected):
		return p.RetryRejected
	default:
		return false
	}
}

// JitterBackoff returns delays uniformly distributed in [min, max).
// It never stops on its own; wrap it with retry.WithMaxRetries.
func JitterBackoff(min, max time.Duration) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if max <= min {
			return min, false
		}
		return min + rand.N(max-min), false
	})
}
