package retry

import (
	"testing"
	"time"

	"github.com/xraph/dunning/payment"
)

func TestPolicyDecideSoftDeclines(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt   int
		wantDelay time.Duration
	}{
		{1, 1 * day},
		{2, 3 * day},
		{3, 7 * day},
		{4, 3 * day}, // lands on day 14, the grace boundary
	}

	for _, tt := range tests {
		d := p.Decide(tt.attempt, payment.DeclineSoft)
		if d.Action != ActionRetry {
			t.Errorf("attempt %d: action = %s, want retry", tt.attempt, d.Action)
		}
		if d.Delay != tt.wantDelay {
			t.Errorf("attempt %d: delay = %v, want %v", tt.attempt, d.Delay, tt.wantDelay)
		}
		if !d.GraceActive {
			t.Errorf("attempt %d: grace should be active", tt.attempt)
		}
	}
}

func TestPolicyDecideBudgetExhausted(t *testing.T) {
	p := DefaultPolicy()

	for _, attempt := range []int{5, 6, 100} {
		d := p.Decide(attempt, payment.DeclineSoft)
		if d.Action != ActionStop {
			t.Errorf("attempt %d: action = %s, want stop", attempt, d.Action)
		}
		if d.Delay != 0 {
			t.Errorf("attempt %d: stop decision should carry zero delay", attempt)
		}
	}
}

func TestPolicyDecideHardDeclines(t *testing.T) {
	p := DefaultPolicy()

	// One retry is allowed for a hard decline.
	d := p.Decide(1, payment.DeclineHard)
	if d.Action != ActionRetry {
		t.Fatalf("attempt 1 hard: action = %s, want retry", d.Action)
	}
	if d.Delay != 1*day {
		t.Errorf("attempt 1 hard: delay = %v, want %v", d.Delay, 1*day)
	}

	// Everything beyond stops immediately.
	for _, attempt := range []int{2, 3, 4} {
		if got := p.Decide(attempt, payment.DeclineHard); got.Action != ActionStop {
			t.Errorf("attempt %d hard: action = %s, want stop", attempt, got.Action)
		}
	}
}

func TestPolicyDecideInvalidAttempt(t *testing.T) {
	p := DefaultPolicy()

	for _, attempt := range []int{0, -1} {
		if got := p.Decide(attempt, payment.DeclineSoft); got.Action != ActionStop {
			t.Errorf("attempt %d: action = %s, want stop", attempt, got.Action)
		}
	}
}

func TestPolicyDecideDeterministic(t *testing.T) {
	p := DefaultPolicy()

	// Exhaustive check over the full input domain.
	for attempt := 0; attempt <= 6; attempt++ {
		for _, kind := range []payment.DeclineKind{payment.DeclineSoft, payment.DeclineHard} {
			first := p.Decide(attempt, kind)
			for i := 0; i < 3; i++ {
				if got := p.Decide(attempt, kind); got != first {
					t.Fatalf("Decide(%d, %v) not deterministic: %+v != %+v", attempt, kind, got, first)
				}
			}
		}
	}
}

func TestPolicyGracePeriod(t *testing.T) {
	p := DefaultPolicy()
	if p.GracePeriod() != 14*day {
		t.Errorf("grace period = %v, want %v", p.GracePeriod(), 14*day)
	}
	if p.MaxAttempts() != 4 {
		t.Errorf("max attempts = %d, want 4", p.MaxAttempts())
	}
}

func TestAttemptDue(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      Status
		scheduledAt time.Time
		want        bool
	}{
		{"scheduled and elapsed", StatusScheduled, now.Add(-time.Hour), true},
		{"scheduled exactly now", StatusScheduled, now, true},
		{"scheduled in future", StatusScheduled, now.Add(time.Hour), false},
		{"already attempted", StatusAttempted, now.Add(-time.Hour), false},
		{"abandoned", StatusAbandoned, now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attempt{Status: tt.status, ScheduledAt: tt.scheduledAt}
			if got := a.Due(now); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}
