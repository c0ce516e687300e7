package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"xdownloader/internal/adapters/upstream"
	"xdownloader/internal/domain"
	"xdownloader/test/fixtures"
)

func fastPolicy() upstream.RetryPolicy {
	return upstream.RetryPolicy{
		MaxRetries:     3,
		MinDelay:       time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		AttemptTimeout: time.Second,
		RetryRejected:  true,
	}
}

// flakyServer fails the first n calls, then answers with body.
func flakyServer(t *testing.T, failures int32, fail http.HandlerFunc, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			fail(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "upstream down", http.StatusServiceUnavailable)
}

func rejected(w http.ResponseWriter, _ *http.Request) {
	w.Write(fixtures.LookupResponse(false, nil, "tweet not found"))
}

func TestFetchTweet_ThreeFailuresThenSuccess_MakesFourAttempts(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 3, unavailable, fixtures.LookupResponse(true, fixtures.SingleTweet(), ""))
	client := upstream.NewClient(srv.URL, srv.Client(), fastPolicy())

	// Act
	raw, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("attempts: got %d, want 4", calls.Load())
	}
	if string(raw) != string(fixtures.SingleTweet()) {
		t.Errorf("payload was not passed through unchanged")
	}
}

func TestFetchTweet_FourFailures_StopsAfterFourAttempts(t *testing.T) {
	testCases := []struct {
		name     string
		fail     http.HandlerFunc
		sentinel error
	}{
		{"unavailable", unavailable, domain.ErrUpstreamUnavailable},
		{"rejected", rejected, domain.ErrUpstreamRejected},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("<html>")) }, domain.ErrUpstreamUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			srv, calls := flakyServer(t, 100, tc.fail, nil)
			client := upstream.NewClient(srv.URL, srv.Client(), fastPolicy())

			// Act
			_, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)
			time.Sleep(20 * time.Millisecond)

			// Assert
			if !errors.Is(err, tc.sentinel) {
				t.Errorf("error: got %v, want %v", err, tc.sentinel)
			}
			var fetchErr *domain.FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *domain.FetchError, got %T", err)
			}
			if fetchErr.Attempts != 4 {
				t.Errorf("FetchError.Attempts: got %d, want 4", fetchErr.Attempts)
			}
			if calls.Load() != 4 {
				t.Errorf("attempts: got %d, want 4", calls.Load())
			}
		})
	}
}

func TestFetchTweet_RetryBudgetIsPerCall(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 100, unavailable, nil)
	client := upstream.NewClient(srv.URL, srv.Client(), fastPolicy())

	// Act
	_, err1 := client.FetchTweet(context.Background(), fixtures.SingleTweetID)
	_, err2 := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if err1 == nil || err2 == nil {
		t.Fatal("both calls should fail")
	}
	if calls.Load() != 8 {
		t.Errorf("attempts: got %d, want 8", calls.Load())
	}
}

func TestFetchTweet_RejectedWithoutRetry_FailsFast(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 100, rejected, nil)
	policy := fastPolicy()
	policy.RetryRejected = false
	client := upstream.NewClient(srv.URL, srv.Client(), policy)

	// Act
	_, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if !errors.Is(err, domain.ErrUpstreamRejected) {
		t.Errorf("error: got %v, want %v", err, domain.ErrUpstreamRejected)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts: got %d, want 1", calls.Load())
	}
}

func TestFetchTweet_SuccessWithoutData_IsMalformedAndNotRetried(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 0, nil, []byte(`{"success":true,"data":null}`))
	client := upstream.NewClient(srv.URL, srv.Client(), fastPolicy())

	// Act
	_, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Errorf("error: got %v, want %v", err, domain.ErrMalformedPayload)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts: got %d, want 1", calls.Load())
	}
}

func TestFetchTweet_SendsTweetIDQueryParam(t *testing.T) {
	// Arrange
	var gotID, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("tweet_id")
		gotKey = r.URL.Query().Get("key")
		w.Write(fixtures.LookupResponse(true, fixtures.SingleTweet(), ""))
	}))
	defer srv.Close()
	client := upstream.NewClient(srv.URL+"/api/requestx?key=abc", srv.Client(), fastPolicy())

	// Act
	_, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != fixtures.SingleTweetID {
		t.Errorf("tweet_id: got %q, want %q", gotID, fixtures.SingleTweetID)
	}
	if gotKey != "abc" {
		t.Errorf("existing query params must be kept, got key=%q", gotKey)
	}
}

func TestFetchTweet_ContextCanceledDuringDelay_StopsRetrying(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 100, unavailable, nil)
	policy := fastPolicy()
	policy.MinDelay = 2 * time.Second
	policy.MaxDelay = 3 * time.Second
	client := upstream.NewClient(srv.URL, srv.Client(), policy)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	// Act
	start := time.Now()
	_, err := client.FetchTweet(ctx, fixtures.SingleTweetID)
	elapsed := time.Since(start)

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error: got %v, want context.Canceled", err)
	}
	if elapsed > time.Second {
		t.Errorf("cancellation took %s, pending delay was not abandoned", elapsed)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts: got %d, want 1", calls.Load())
	}
}

func TestFetchTweet_HungAttempt_TimesOutAndRetries(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	policy := fastPolicy()
	policy.MaxRetries = 1
	policy.AttemptTimeout = 30 * time.Millisecond
	client := upstream.NewClient(srv.URL, srv.Client(), policy)

	// Act
	_, err := client.FetchTweet(context.Background(), fixtures.SingleTweetID)

	// Assert
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("error: got %v, want %v", err, domain.ErrUpstreamUnavailable)
	}
	if calls.Load() != 2 {
		t.Errorf("attempts: got %d, want 2", calls.Load())
	}
}

func TestLookup_SingleAttempt(t *testing.T) {
	// Arrange
	srv, calls := flakyServer(t, 100, unavailable, nil)
	client := upstream.NewClient(srv.URL, srv.Client(), fastPolicy())

	// Act
	_, err := client.Lookup(context.Background(), fixtures.SingleTweetID)

	// Assert
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("error: got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts: got %d, want 1", calls.Load())
	}
}
