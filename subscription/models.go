// Package subscription defines the recurring billing relationship and its
// lifecycle state machine.
package subscription

import (
	"fmt"
	"time"

	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/types"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusTrialing      Status = "trialing"
	StatusActive        Status = "active"
	StatusPastDue       Status = "past_due"
	StatusPaymentFailed Status = "payment_failed"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
)

// IsTerminal reports whether the status is terminal. Terminal subscriptions
// only leave their state via explicit manual reactivation, which is modeled
// as a new subscription.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// BillingCycle is the recurrence of a subscription's charge.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// PeriodLength returns the calendar length of one billing cycle in
// (years, months).
func (c BillingCycle) PeriodLength() (years, months int) {
	if c == CycleYearly {
		return 1, 0
	}
	return 0, 1
}

// Subscription is a recurring billing relationship, driven through its
// lifecycle by the recovery engine.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	OwnerID            string            `json:"owner_id"`
	Plan               string            `json:"plan"`
	Status             Status            `json:"status"`
	BillingCycle       BillingCycle      `json:"billing_cycle"`
	Amount             types.Money       `json:"amount"`
	// PaymentMethod is the gateway-side stored instrument reference
	// charged on renewal and retry.
	PaymentMethod string `json:"payment_method,omitempty"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	AutoRenew          bool              `json:"auto_renew"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt          *time.Time        `json:"expired_at,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// transitions maps each status to the set of statuses reachable from it.
var transitions = map[Status][]Status{
	StatusTrialing:      {StatusActive, StatusPastDue, StatusExpired},
	StatusActive:        {StatusPastDue, StatusExpired},
	StatusPastDue:       {StatusPaymentFailed, StatusActive, StatusCancelled},
	StatusPaymentFailed: {StatusActive, StatusCancelled},
	StatusCancelled:     {},
	StatusExpired:       {},
}

// CanTransition reports whether moving from one status to another is a legal
// lifecycle transition.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal state machine transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("subscription: illegal transition %s -> %s", e.From, e.To)
}

// Transition moves the subscription to the given status, enforcing the
// state machine. The UpdatedAt timestamp is touched with the given time.
func (s *Subscription) Transition(to Status, now time.Time) error {
	if s.Status == to {
		return nil
	}
	if !CanTransition(s.Status, to) {
		return &TransitionError{From: s.Status, To: to}
	}

	s.Status = to
	switch to {
	case StatusCancelled:
		t := now.UTC()
		s.CancelledAt = &t
	case StatusExpired:
		t := now.UTC()
		s.ExpiredAt = &t
	}
	s.TouchAt(now)
	return nil
}

// ExtendPeriod advances the current billing period by one cycle, anchored at
// the given time. Called after a successful recovery charge.
func (s *Subscription) ExtendPeriod(now time.Time) {
	years, months := s.BillingCycle.PeriodLength()
	s.CurrentPeriodStart = now.UTC()
	s.CurrentPeriodEnd = now.UTC().AddDate(years, months, 0)
	s.TouchAt(now)
}

// Lapsed reports whether the subscription's period has ended without
// auto-renewal, making it eligible for expiry.
func (s *Subscription) Lapsed(now time.Time) bool {
	return !s.AutoRenew &&
		(s.Status == StatusActive || s.Status == StatusTrialing) &&
		now.After(s.CurrentPeriodEnd)
}
