package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"trialing to past_due on first failure", StatusTrialing, StatusPastDue, true},
		{"active to past_due on first failure", StatusActive, StatusPastDue, true},
		{"past_due to payment_failed on repeat failure", StatusPastDue, StatusPaymentFailed, true},
		{"past_due recovers to active", StatusPastDue, StatusActive, true},
		{"payment_failed recovers to active", StatusPaymentFailed, StatusActive, true},
		{"past_due to cancelled", StatusPastDue, StatusCancelled, true},
		{"payment_failed to cancelled", StatusPaymentFailed, StatusCancelled, true},
		{"active expires at period end", StatusActive, StatusExpired, true},
		{"active cannot skip to payment_failed", StatusActive, StatusPaymentFailed, false},
		{"active cannot jump to cancelled", StatusActive, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusActive, false},
		{"expired is terminal", StatusExpired, StatusActive, false},
		{"payment_failed cannot regress to past_due", StatusPaymentFailed, StatusPastDue, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sub := &Subscription{
		ID:     id.NewSubscriptionID(),
		Status: StatusActive,
	}

	if err := sub.Transition(StatusPastDue, now); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}
	if sub.Status != StatusPastDue {
		t.Errorf("status = %s, want %s", sub.Status, StatusPastDue)
	}

	err := sub.Transition(StatusExpired, now)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if sub.Status != StatusPastDue {
		t.Errorf("status changed on illegal transition: %s", sub.Status)
	}
}

func TestTransitionSelfIsNoop(t *testing.T) {
	sub := &Subscription{Status: StatusPastDue}
	if err := sub.Transition(StatusPastDue, time.Now()); err != nil {
		t.Fatalf("self transition should be a no-op, got %v", err)
	}
}

func TestTransitionCancelledStampsTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sub := &Subscription{Status: StatusPaymentFailed}

	if err := sub.Transition(StatusCancelled, now); err != nil {
		t.Fatal(err)
	}
	if sub.CancelledAt == nil || !sub.CancelledAt.Equal(now) {
		t.Errorf("CancelledAt = %v, want %v", sub.CancelledAt, now)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusTrialing, StatusActive, StatusPastDue, StatusPaymentFailed} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestExtendPeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{
		BillingCycle: CycleMonthly,
		Amount:       types.USD(4900),
	}

	sub.ExtendPeriod(now)

	if !sub.CurrentPeriodStart.Equal(now) {
		t.Errorf("period start = %v, want %v", sub.CurrentPeriodStart, now)
	}
	want := now.AddDate(0, 1, 0)
	if !sub.CurrentPeriodEnd.Equal(want) {
		t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, want)
	}
}

func TestLapsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    Status
		autoRenew bool
		periodEnd time.Time
		want      bool
	}{
		{"active past period end, no renew", StatusActive, false, now.AddDate(0, 0, -1), true},
		{"active past period end, auto renew", StatusActive, true, now.AddDate(0, 0, -1), false},
		{"active within period", StatusActive, false, now.AddDate(0, 0, 1), false},
		{"past_due never lapses", StatusPastDue, false, now.AddDate(0, 0, -1), false},
		{"trialing past period end", StatusTrialing, false, now.AddDate(0, 0, -1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{
				Status:           tt.status,
				AutoRenew:        tt.autoRenew,
				CurrentPeriodEnd: tt.periodEnd,
			}
			if got := sub.Lapsed(now); got != tt.want {
				t.Errorf("Lapsed = %v, want %v", got, tt.want)
			}
		})
	}
}
