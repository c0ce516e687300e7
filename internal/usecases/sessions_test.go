package usecases

import (
	"context"
	"testing"
	"time"
)

func TestRequestTracker_Begin_CancelsPrevious(t *testing.T) {
	// Arrange
	tracker := NewRequestTracker()
	firstCtx, first, cancelFirst := tracker.Begin(context.Background(), "s", "1")
	defer cancelFirst()

	// Act
	secondCtx, second, cancelSecond := tracker.Begin(context.Background(), "s", "2")
	defer cancelSecond()

	// Assert
	if firstCtx.Err() == nil {
		t.Error("first context should be cancelled")
	}
	if secondCtx.Err() != nil {
		t.Error("second context should be live")
	}
	if tracker.Finish(first) {
		t.Error("stale ticket must not finish as current")
	}
	if !tracker.Finish(second) {
		t.Error("latest ticket should finish as current")
	}
}

func TestRequestTracker_EmptySession_IsNotTracked(t *testing.T) {
	// Arrange
	tracker := NewRequestTracker()

	// Act
	ctx1, t1, c1 := tracker.Begin(context.Background(), "", "1")
	defer c1()
	_, t2, c2 := tracker.Begin(context.Background(), "", "2")
	defer c2()

	// Assert
	if ctx1.Err() != nil {
		t.Error("untracked contexts must not cancel each other")
	}
	if !tracker.Finish(t1) || !tracker.Finish(t2) {
		t.Error("untracked tickets always finish")
	}
	if tracker.Len() != 0 {
		t.Errorf("Len: got %d, want 0", tracker.Len())
	}
}

func TestRequestTracker_Latest(t *testing.T) {
	// Arrange
	tracker := NewRequestTracker()
	_, _, cancel := tracker.Begin(context.Background(), "s", "42")
	defer cancel()

	// Act
	id, ok := tracker.Latest("s")
	_, missing := tracker.Latest("other")

	// Assert
	if !ok || id != "42" {
		t.Errorf("Latest: got %v, %v", id, ok)
	}
	if missing {
		t.Error("unknown session should have no latest id")
	}
}

func TestRequestTracker_Prune_SkipsInFlight(t *testing.T) {
	// Arrange
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewRequestTracker()
	tracker.now = func() time.Time { return now }

	_, idle, c1 := tracker.Begin(context.Background(), "idle", "1")
	defer c1()
	tracker.Finish(idle)
	_, _, c2 := tracker.Begin(context.Background(), "busy", "2")
	defer c2()

	// Act
	now = now.Add(time.Hour)
	removed := tracker.Prune(30 * time.Minute)

	// Assert
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if _, ok := tracker.Latest("busy"); !ok {
		t.Error("in-flight session must survive pruning")
	}
	if _, ok := tracker.Latest("idle"); ok {
		t.Error("idle session should be pruned")
	}
}
