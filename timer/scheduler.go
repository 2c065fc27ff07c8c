package timer

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Callback is invoked when an entry comes due. Implementations must re-check
// current state and no-op when the work has already resolved: delivery is
// at-least-once.
type Callback func(ctx context.Context, e Entry)

// Entry is one scheduled callback.
type Entry struct {
	// Kind routes the entry to the right handler (e.g. "retry", "campaign").
	Kind string
	// TargetID identifies the entity to act on.
	TargetID string
	// FireAt is when the entry comes due.
	FireAt time.Time
}

// entryHeap is a min-heap ordered by FireAt.
type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].FireAt.Before(h[j].FireAt) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler holds a min-heap of due timers polled by a single worker.
// It never blocks callers: Schedule is O(log n) and fire dispatch happens
// on the worker goroutine.
type Scheduler struct {
	mu      sync.Mutex
	heap    entryHeap
	clock   Clock
	cb      Callback
	logger  *slog.Logger
	poll    time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a Scheduler dispatching due entries to cb.
func NewScheduler(clock Clock, cb Callback, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:  clock,
		cb:     cb,
		logger: slog.Default(),
		poll:   time.Second,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	heap.Init(&s.heap)
	return s
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// WithPollInterval sets how often the worker checks for due entries.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.poll = d }
}

// Schedule registers an entry. Safe to call before and after Start.
func (s *Scheduler) Schedule(e Entry) {
	s.mu.Lock()
	heap.Push(&s.heap, e)
	s.mu.Unlock()
}

// Len returns the number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// Start launches the worker goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(ctx)
}

// Stop terminates the worker and waits for in-flight callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Dispatch(ctx)
		}
	}
}

// Dispatch fires every entry due at the clock's current time. Exposed so
// tests can drive the scheduler deterministically with a fake clock.
func (s *Scheduler) Dispatch(ctx context.Context) {
	now := s.clock.Now()

	for {
		s.mu.Lock()
		if s.heap.Len() == 0 || s.heap[0].FireAt.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(Entry)
		s.mu.Unlock()

		s.logger.Debug("timer fired",
			"kind", e.Kind,
			"target", e.TargetID,
			"scheduled_for", e.FireAt,
		)
		s.cb(ctx, e)
	}
}
