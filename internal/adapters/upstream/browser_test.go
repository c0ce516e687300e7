package upstream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTabGate_Backpressure_RespectsCapacity(t *testing.T) {
	testCases := []struct {
		name string
		tabs int
		want int32
	}{
		{"default one tab", 0, 1},
		{"one tab", 1, 1},
		{"two tabs", 2, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			gate := newTabGate(tc.tabs)
			var current, maxSeen atomic.Int32
			var wg sync.WaitGroup

			// Act
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := gate.acquire(context.Background()); err != nil {
						t.Errorf("acquire: %v", err)
						return
					}
					defer gate.release()

					n := current.Add(1)
					for {
						m := maxSeen.Load()
						if n <= m || maxSeen.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					current.Add(-1)
				}()
			}
			wg.Wait()

			// Assert
			if maxSeen.Load() != tc.want {
				t.Errorf("max concurrent: got %d, want %d", maxSeen.Load(), tc.want)
			}
			if gate.capacity() != int(tc.want) {
				t.Errorf("capacity: got %d, want %d", gate.capacity(), tc.want)
			}
		})
	}
}

func TestTabGate_ContextCanceled_WhileWaiting(t *testing.T) {
	// Arrange
	gate := newTabGate(1)
	if err := gate.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Act
	err := gate.acquire(ctx)

	// Assert
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error: got %v, want %v", err, context.DeadlineExceeded)
	}

	// Act - slot is still usable after release
	gate.release()
	if err := gate.acquire(context.Background()); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestBrowserPool_Do_RejectsNonGET(t *testing.T) {
	// Arrange
	bp := &BrowserPool{tabs: newTabGate(1)}
	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)

	// Act
	_, err := bp.Do(req)

	// Assert
	if err == nil {
		t.Error("expected error for POST")
	}
}

func TestBrowserPool_ImplementsDoer(t *testing.T) {
	var _ Doer = (*BrowserPool)(nil)
	var _ Doer = http.DefaultClient
}
