package usecases

import (
	"context"
	"sync"
	"time"

	"xdownloader/pkg/log"
)

// QuotaReader reads the remaining upstream call count.
type QuotaReader interface {
	Remaining(ctx context.Context) (int64, error)
}

// QuotaTracker keeps the last known remaining count.
type QuotaTracker struct {
	reader QuotaReader

	mu        sync.RWMutex
	remaining int64
	known     bool
	updatedAt time.Time
}

// NewQuotaTracker creates a tracker. A nil reader makes Refresh a no-op.
func NewQuotaTracker(reader QuotaReader) *QuotaTracker {
	return &QuotaTracker{reader: reader}
}

// Refresh reads the count from upstream and stores it. On failure the
// previous value is kept.
func (q *QuotaTracker) Refresh(ctx context.Context) (int64, error) {
	if q == nil || q.reader == nil {
		return 0, nil
	}
	n, err := q.reader.Remaining(ctx)
	if err != nil {
		log.GlobalWarnCtx(ctx, "quota refresh failed", "error", err)
		return 0, err
	}

	q.mu.Lock()
	q.remaining = n
	q.known = true
	q.updatedAt = time.Now()
	q.mu.Unlock()
	return n, nil
}

// Remaining returns the last known count and whether one was ever read.
func (q *QuotaTracker) Remaining() (int64, bool) {
	if q == nil {
		return 0, false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.remaining, q.known
}
