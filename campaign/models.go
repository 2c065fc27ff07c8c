// Package campaign defines the escalating dunning communication track and
// the pure engine that advances it.
package campaign

import (
	"time"

	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/notify"
	"github.com/xraph/dunning/types"
)

// Status is the lifecycle state of a dunning campaign.
type Status string

const (
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusAbandoned Status = "abandoned"
)

// Resolution records how a campaign ended.
type Resolution string

const (
	// ResolutionRecovered means the customer responded or the payment
	// succeeded before the campaign exhausted.
	ResolutionRecovered Resolution = "recovered"
	// ResolutionAbandoned means all steps ran without response; the
	// subscription escalates to cancellation.
	ResolutionAbandoned Resolution = "abandoned"
)

// Type names the communication track in use.
type Type string

const (
	// TypePaymentRecovery is the standard failed-payment escalation track.
	TypePaymentRecovery Type = "payment_recovery"
)

// Campaign is the escalating communication track for one failure episode.
// At most one active campaign may exist per subscription.
type Campaign struct {
	types.Entity
	ID                 id.CampaignID     `json:"id"`
	SubscriptionID     id.SubscriptionID `json:"subscription_id"`
	Type               Type              `json:"campaign_type"`
	CurrentStep        int               `json:"current_step"`
	TotalSteps         int               `json:"total_steps"`
	StartedAt          time.Time         `json:"started_at"`
	NextActionDate     time.Time         `json:"next_action_date"`
	LastStepAt         *time.Time        `json:"last_step_at,omitempty"`
	CommunicationsSent int               `json:"communications_sent"`
	ResponseReceived   bool              `json:"response_received"`
	Status             Status            `json:"status"`
	Resolution         Resolution        `json:"resolution,omitempty"`
	ResolvedAt         *time.Time        `json:"resolved_at,omitempty"`
}

// Resolve closes the campaign with the given resolution.
func (c *Campaign) Resolve(res Resolution, now time.Time) {
	t := now.UTC()
	switch res {
	case ResolutionAbandoned:
		c.Status = StatusAbandoned
	default:
		c.Status = StatusResolved
	}
	c.Resolution = res
	c.ResolvedAt = &t
	c.TouchAt(now)
}

// RecordStep advances the campaign one step and stamps the communication.
func (c *Campaign) RecordStep(nextAction time.Time, now time.Time) {
	t := now.UTC()
	c.CurrentStep++
	c.LastStepAt = &t
	c.CommunicationsSent++
	c.NextActionDate = nextAction
	c.TouchAt(now)
}

// Step is one rung of the escalation ladder.
type Step struct {
	// Name identifies the communication, doubling as the template ID.
	Name string
	// Day is the offset in days from the campaign start at which the step
	// fires.
	Day int
	// Channels lists the delivery channels for this step.
	Channels []notify.Channel
}

// Plan is the fixed-length escalation schedule for a campaign type.
type Plan struct {
	Type  Type
	Steps []Step
}

// DefaultPlan returns the standard four-step payment recovery track:
// reminder (day 1), warning (day 5), final notice (day 10) and suspension
// notice (day 13). Email carries the first two steps; SMS is added for the
// later, more urgent ones.
func DefaultPlan() *Plan {
	return &Plan{
		Type: TypePaymentRecovery,
		Steps: []Step{
			{Name: "payment_reminder", Day: 1, Channels: []notify.Channel{notify.ChannelEmail}},
			{Name: "payment_warning", Day: 5, Channels: []notify.Channel{notify.ChannelEmail}},
			{Name: "final_notice", Day: 10, Channels: []notify.Channel{notify.ChannelEmail, notify.ChannelSMS}},
			{Name: "suspension_notice", Day: 13, Channels: []notify.Channel{notify.ChannelEmail, notify.ChannelSMS}},
		},
	}
}

// TotalSteps returns the number of steps in the plan.
func (p *Plan) TotalSteps() int { return len(p.Steps) }

// StepAt returns the 1-based step, or nil when out of range.
func (p *Plan) StepAt(n int) *Step {
	if n < 1 || n > len(p.Steps) {
		return nil
	}
	return &p.Steps[n-1]
}

// GapBeforeStep returns the days between the previous step and step n.
// The first step's gap is measured from the campaign start.
func (p *Plan) GapBeforeStep(n int) int {
	s := p.StepAt(n)
	if s == nil {
		return 0
	}
	if n == 1 {
		return s.Day
	}
	return s.Day - p.Steps[n-2].Day
}
