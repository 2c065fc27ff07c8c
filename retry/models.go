// Package retry defines payment retry attempts and the pure policy engine
// that schedules them.
package retry

import (
	"time"

	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/types"
)

// Status is the lifecycle state of a retry attempt.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusAttempted Status = "attempted"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// IsTerminal reports whether the attempt can no longer change state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAbandoned
}

// Method distinguishes automatically scheduled retries from admin overrides.
type Method string

const (
	MethodAutomatic Method = "automatic"
	MethodManual    Method = "manual"
)

// Attempt is a scheduled or executed retry for a failed payment.
// Attempts are never deleted; they form the audit history of an episode.
type Attempt struct {
	types.Entity
	ID                id.RetryID            `json:"id"`
	SubscriptionID    id.SubscriptionID     `json:"subscription_id"`
	PaymentID         id.PaymentID          `json:"payment_id"`
	AttemptNumber     int                   `json:"attempt_number"`
	ScheduledAt       time.Time             `json:"scheduled_at"`
	AttemptedAt       *time.Time            `json:"attempted_at,omitempty"`
	Status            Status                `json:"status"`
	Method            Method                `json:"retry_method"`
	GracePeriodActive bool                  `json:"grace_period_active"`
	FailureReason     payment.FailureReason `json:"failure_reason,omitempty"`
}

// Due reports whether the attempt is scheduled and its fire time has elapsed.
func (a *Attempt) Due(now time.Time) bool {
	return a.Status == StatusScheduled && !now.Before(a.ScheduledAt)
}

// MarkAttempted stamps the execution time. The attempt stays in this state
// only for the duration of the gateway call.
func (a *Attempt) MarkAttempted(now time.Time) {
	t := now.UTC()
	a.Status = StatusAttempted
	a.AttemptedAt = &t
	a.TouchAt(now)
}

// MarkSucceeded records a successful charge.
func (a *Attempt) MarkSucceeded(now time.Time) {
	a.Status = StatusSucceeded
	a.TouchAt(now)
}

// MarkFailed records a failed charge with the new failure reason.
func (a *Attempt) MarkFailed(reason payment.FailureReason, now time.Time) {
	a.Status = StatusFailed
	a.FailureReason = reason
	a.TouchAt(now)
}

// MarkAbandoned retires a pending attempt without executing it, e.g. when
// the dunning campaign exhausts and the subscription is cancelled.
func (a *Attempt) MarkAbandoned(now time.Time) {
	a.Status = StatusAbandoned
	a.TouchAt(now)
}
