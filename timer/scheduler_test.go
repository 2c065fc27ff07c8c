package timer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSchedulerDispatchOrder(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFake(start)

	var mu sync.Mutex
	var fired []string
	s := NewScheduler(clock, func(_ context.Context, e Entry) {
		mu.Lock()
		fired = append(fired, e.TargetID)
		mu.Unlock()
	})

	// Schedule out of order.
	s.Schedule(Entry{Kind: "retry", TargetID: "c", FireAt: start.Add(3 * time.Hour)})
	s.Schedule(Entry{Kind: "retry", TargetID: "a", FireAt: start.Add(1 * time.Hour)})
	s.Schedule(Entry{Kind: "retry", TargetID: "b", FireAt: start.Add(2 * time.Hour)})

	s.Dispatch(context.Background())
	if len(fired) != 0 {
		t.Fatalf("nothing should fire at t0, got %v", fired)
	}

	clock.Advance(2 * time.Hour)
	s.Dispatch(context.Background())

	mu.Lock()
	got := append([]string(nil), fired...)
	mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", got)
	}
	if s.Len() != 1 {
		t.Errorf("pending = %d, want 1", s.Len())
	}

	clock.Advance(2 * time.Hour)
	s.Dispatch(context.Background())
	if s.Len() != 0 {
		t.Errorf("pending = %d, want 0", s.Len())
	}
}

func TestSchedulerStartStop(t *testing.T) {
	clock := NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{}, 1)
	s := NewScheduler(clock, func(_ context.Context, _ Entry) {
		select {
		case done <- struct{}{}:
		default:
		}
	}, WithPollInterval(time.Millisecond))

	s.Schedule(Entry{Kind: "retry", TargetID: "x", FireAt: clock.Now().Add(-time.Minute)})

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never dispatched due entry")
	}
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFake(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now = %v, want %v", clock.Now(), start)
	}

	clock.Advance(24 * time.Hour)
	if !clock.Now().Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("Now after advance = %v", clock.Now())
	}

	later := start.AddDate(0, 1, 0)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now after set = %v", clock.Now())
	}
}
