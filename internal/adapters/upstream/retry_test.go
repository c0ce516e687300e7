package upstream

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"xdownloader/internal/domain"
)

func TestJitterBackoff_DefaultRange(t *testing.T) {
	// Arrange
	policy := DefaultRetryPolicy()
	b := JitterBackoff(policy.MinDelay, policy.MaxDelay)

	// Act & Assert
	for i := 0; i < 2000; i++ {
		d, stop := b.Next()
		if stop {
			t.Fatal("jitter backoff must never stop on its own")
		}
		if d < 1000*time.Millisecond || d >= 1500*time.Millisecond {
			t.Fatalf("delay %s outside [1000ms, 1500ms)", d)
		}
	}
}

func TestJitterBackoff_DegenerateRange(t *testing.T) {
	// Arrange
	b := JitterBackoff(5*time.Millisecond, 5*time.Millisecond)

	// Act
	d, stop := b.Next()

	// Assert
	if stop || d != 5*time.Millisecond {
		t.Errorf("got (%s, %v), want (5ms, false)", d, stop)
	}
}

func TestRetryPolicy_Backoff_StopsAfterMaxRetries(t *testing.T) {
	// Arrange
	b := DefaultRetryPolicy().Backoff()

	// Act
	delays := 0
	for {
		_, stop := b.Next()
		if stop {
			break
		}
		delays++
		if delays > 10 {
			t.Fatal("backoff never stopped")
		}
	}

	// Assert
	if delays != 3 {
		t.Errorf("delays: got %d, want 3", delays)
	}
}

func TestRetryPolicy_Backoff_IsFreshPerCall(t *testing.T) {
	// Arrange
	policy := DefaultRetryPolicy()
	first := policy.Backoff()
	for {
		if _, stop := first.Next(); stop {
			break
		}
	}

	// Act
	_, stop := policy.Backoff().Next()

	// Assert
	if stop {
		t.Error("a new backoff must not inherit the exhausted budget")
	}
}

func TestRetryPolicy_Retryable(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		retryRejected bool
		expected      bool
	}{
		{"unavailable", fmt.Errorf("%w: status 503", domain.ErrUpstreamUnavailable), false, true},
		{"rejected retried", fmt.Errorf("%w: deleted", domain.ErrUpstreamRejected), true, true},
		{"rejected fail fast", fmt.Errorf("%w: deleted", domain.ErrUpstreamRejected), false, false},
		{"malformed", domain.ErrMalformedPayload, true, false},
		{"other", errors.New("boom"), true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			policy := DefaultRetryPolicy()
			policy.RetryRejected = tc.retryRejected

			// Act
			got := policy.Retryable(tc.err)

			// Assert
			if got != tc.expected {
				t.Errorf("Retryable: got %v, want %v", got, tc.expected)
			}
		})
	}
}
