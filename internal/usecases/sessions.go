package usecases

import (
	"context"
	"sync"
	"time"

	"xdownloader/internal/domain"
)

// Ticket identifies one fetch within a session.
type Ticket struct {
	Session    string
	Generation uint64
	TweetID    domain.TweetID
}

// RequestTracker remembers the latest fetch of every session. Starting a new
// fetch cancels the previous one, and results of older tickets are discarded.
type RequestTracker struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	now      func() time.Time
}

type sessionState struct {
	generation uint64
	latest     domain.TweetID
	cancel     context.CancelFunc
	lastSeen   time.Time
}

// NewRequestTracker creates an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
}

// Begin registers a fetch of id for session. The returned context is
// cancelled when a newer fetch begins for the same session; the caller must
// call the returned CancelFunc when done. An empty session is not tracked.
func (t *RequestTracker) Begin(ctx context.Context, session string, id domain.TweetID) (context.Context, Ticket, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if session == "" {
		return ctx, Ticket{TweetID: id}, cancel
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[session]
	if !ok {
		st = &sessionState{}
		t.sessions[session] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.generation++
	st.latest = id
	st.cancel = cancel
	st.lastSeen = t.now()

	return ctx, Ticket{Session: session, Generation: st.generation, TweetID: id}, cancel
}

// Finish ends ticket and reports whether its result may be applied.
func (t *RequestTracker) Finish(ticket Ticket) bool {
	if ticket.Session == "" {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[ticket.Session]
	if !ok || st.generation != ticket.Generation {
		return false
	}
	st.cancel = nil
	st.lastSeen = t.now()
	return true
}

// Latest returns the last identifier requested by session.
func (t *RequestTracker) Latest(session string) (domain.TweetID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[session]
	if !ok || st.latest == "" {
		return "", false
	}
	return st.latest, true
}

// Prune forgets sessions idle for longer than idle with no fetch in flight.
func (t *RequestTracker) Prune(idle time.Duration) int {
	cutoff := t.now().Add(-idle)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, st := range t.sessions {
		if st.cancel == nil && st.lastSeen.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (t *RequestTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
