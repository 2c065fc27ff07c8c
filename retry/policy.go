package retry

import (
	"time"

	"github.com/xraph/dunning/payment"
)

// Action is the policy verdict for a failed charge.
type Action string

const (
	ActionRetry Action = "retry"
	ActionStop  Action = "stop"
)

// Decision is the output of the policy engine for one failure.
type Decision struct {
	Action Action
	// Delay until the next attempt. Zero when Action is ActionStop.
	Delay time.Duration
	// GraceActive reports whether the subscription retains entitlements
	// while the attempt is pending.
	GraceActive bool
}

const day = 24 * time.Hour

// Policy decides whether and when a failed charge is retried.
// The zero value is not usable; construct with DefaultPolicy.
type Policy struct {
	// delays[n-1] is the wait before attempt n. The schedule is bounded
	// exponential backoff landing the final attempt on the grace boundary:
	// attempts fire on days 1, 4, 11 and 14 of the episode.
	delays []time.Duration
	// maxHardAttempts caps attempts for hard declines. Repeated charges
	// against a dead instrument waste gateway reputation.
	maxHardAttempts int
	// gracePeriod is the interval during which a failing subscription
	// retains entitlements.
	gracePeriod time.Duration
}

// DefaultPolicy returns the standard recovery schedule: four attempts at
// +1d, +3d, +7d and +3d (day 14, the grace boundary), with hard declines
// stopped after a single retry.
func DefaultPolicy() *Policy {
	return &Policy{
		delays:          []time.Duration{1 * day, 3 * day, 7 * day, 3 * day},
		maxHardAttempts: 1,
		gracePeriod:     14 * day,
	}
}

// NewPolicy builds a custom schedule. delays[n-1] is the wait before
// attempt n, maxHardAttempts caps attempts for hard declines, and
// gracePeriod bounds the whole episode.
func NewPolicy(delays []time.Duration, maxHardAttempts int, gracePeriod time.Duration) *Policy {
	return &Policy{
		delays:          append([]time.Duration(nil), delays...),
		maxHardAttempts: maxHardAttempts,
		gracePeriod:     gracePeriod,
	}
}

// MaxAttempts returns the attempt budget for soft declines.
func (p *Policy) MaxAttempts() int { return len(p.delays) }

// GracePeriod returns the grace interval measured from the episode start.
func (p *Policy) GracePeriod() time.Duration { return p.gracePeriod }

// Decide returns the action for scheduling attempt number attemptNumber
// (1-based within the failure episode) after a failure of the given kind.
// Pure function: same inputs always produce the same decision.
func (p *Policy) Decide(attemptNumber int, kind payment.DeclineKind) Decision {
	if attemptNumber < 1 || attemptNumber > len(p.delays) {
		return Decision{Action: ActionStop}
	}
	if kind == payment.DeclineHard && attemptNumber > p.maxHardAttempts {
		return Decision{Action: ActionStop}
	}

	return Decision{
		Action:      ActionRetry,
		Delay:       p.delays[attemptNumber-1],
		GraceActive: true,
	}
}
