package scheduler

import (
	"context"
	"time"

	"xdownloader/pkg/log"
)

// Job names.
const (
	JobWarmListings  = "warm-listings"
	JobPruneSessions = "prune-sessions"
	JobRefreshQuota  = "refresh-quota"
	JobReloadHidden  = "reload-hidden"
	JobPurgeCache    = "purge-cache"
)

// ListingWarmer preloads listings.
type ListingWarmer interface {
	Warm(ctx context.Context, limit int) error
}

// WarmListingsJob refreshes every listing at limit.
func WarmListingsJob(w ListingWarmer, limit int) Job {
	return func(ctx context.Context) error {
		return w.Warm(ctx, limit)
	}
}

// SessionPruner forgets idle sessions.
type SessionPruner interface {
	Prune(idle time.Duration) int
	Len() int
}

// PruneSessionsJob drops sessions idle for longer than idle.
func PruneSessionsJob(p SessionPruner, idle time.Duration) Job {
	return func(ctx context.Context) error {
		if n := p.Prune(idle); n > 0 {
			log.GlobalDebugCtx(ctx, "sessions pruned", "count", n, "remaining", p.Len())
		}
		return nil
	}
}

// QuotaRefresher reloads the remaining upstream count.
type QuotaRefresher interface {
	Refresh(ctx context.Context) (int64, error)
}

// RefreshQuotaJob keeps the displayed quota current between fetches.
func RefreshQuotaJob(q QuotaRefresher) Job {
	return func(ctx context.Context) error {
		_, err := q.Refresh(ctx)
		return err
	}
}

// HiddenReloader re-reads the hidden accounts file when it changed.
type HiddenReloader interface {
	ReloadIfChanged() (bool, error)
}

// ReloadHiddenJob hot-reloads the hidden accounts and keywords.
func ReloadHiddenJob(r HiddenReloader) Job {
	return func(ctx context.Context) error {
		reloaded, err := r.ReloadIfChanged()
		if reloaded {
			log.GlobalInfoCtx(ctx, "hidden filter reloaded")
		}
		return err
	}
}

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
	Len() int
}

// PurgeCacheJob removes expired listing cache entries.
func PurgeCacheJob(p Purger) Job {
	return func(ctx context.Context) error {
		if n := p.Purge(); n > 0 {
			log.GlobalDebugCtx(ctx, "cache purged", "count", n, "remaining", p.Len())
		}
		return nil
	}
}
