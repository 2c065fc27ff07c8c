package dunning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/gateway"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/notify"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/subscription"
	"github.com/xraph/dunning/timer"
	"github.com/xraph/dunning/types"
)

// RecommendedAction tells the caller what happens next for a failed charge.
type RecommendedAction string

const (
	// ActionAwaitRetry means an automatic retry is scheduled.
	ActionAwaitRetry RecommendedAction = "await_retry"
	// ActionManualReview means automatic retries are exhausted or stopped;
	// the dunning campaign is the sole remaining recovery path.
	ActionManualReview RecommendedAction = "manual_review"
	// ActionNone means no further recovery action is pending.
	ActionNone RecommendedAction = "none"
)

// FailureResult is the outcome of handling one charge failure.
type FailureResult struct {
	// RetryID identifies the scheduled attempt. Nil when no retry was
	// scheduled.
	RetryID           *id.RetryID
	NextRetryDate     *time.Time
	GracePeriodEnd    *time.Time
	RecommendedAction RecommendedAction
}

// RetryResult is the outcome of executing one retry attempt.
type RetryResult struct {
	Success           bool
	NextRetryDate     *time.Time
	GracePeriodEnd    *time.Time
	RecommendedAction RecommendedAction
}

// ──────────────────────────────────────────────────
// Failure Handler
// ──────────────────────────────────────────────────

// HandleFailure is the entry point on charge failure, called by the gateway
// webhook handler. It records the failure, consults the retry policy,
// schedules the next attempt, opens a dunning campaign if none is active and
// moves the subscription into its delinquent state.
//
// Idempotent: a redelivered webhook for the same payment returns the already
// scheduled attempt instead of duplicating it.
func (e *Engine) HandleFailure(ctx context.Context, payID id.PaymentID, subID id.SubscriptionID, reason payment.FailureReason, errorCode string) (*FailureResult, error) {
	if payID.IsNil() {
		return nil, ValidationError{Field: "payment_id", Message: "required"}
	}
	if subID.IsNil() {
		return nil, ValidationError{Field: "subscription_id", Message: "required"}
	}

	unlock := e.locks.lock(subID.String())
	defer unlock()

	return e.handleFailureLocked(ctx, payID, subID, reason, errorCode)
}

// handleFailureLocked is HandleFailure minus the lock acquisition. The retry
// executor calls it directly while already holding the subscription lock.
func (e *Engine) handleFailureLocked(ctx context.Context, payID id.PaymentID, subID id.SubscriptionID, reason payment.FailureReason, errorCode string) (*FailureResult, error) {
	now := e.clock.Now()

	pay, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}
	if pay.Status.IsTerminal() {
		return nil, ErrPaymentTerminal
	}
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, ErrSubscriptionTerminal
	}

	// Duplicate delivery: a non-terminal attempt already tied to this
	// payment means this failure was handled. The first delivery may
	// still have died between writes, so converge the campaign and the
	// subscription state before returning the existing schedule; both
	// operations are idempotent.
	if existing, err := e.store.GetRetryByPayment(ctx, payID); err == nil {
		if err := e.ensureCampaign(ctx, sub, now); err != nil {
			return nil, err
		}
		target := subscription.StatusPastDue
		if existing.AttemptNumber > 1 {
			target = subscription.StatusPaymentFailed
		}
		if err := e.transitionSubscription(ctx, sub, target, now); err != nil {
			return nil, err
		}
		return &FailureResult{
			RetryID:           &existing.ID,
			NextRetryDate:     &existing.ScheduledAt,
			GracePeriodEnd:    e.gracePeriodEnd(ctx, subID, now),
			RecommendedAction: ActionAwaitRetry,
		}, nil
	}

	if pay.Status != payment.StatusFailed {
		pay.MarkFailed(reason, errorCode, now)
		if err := e.store.UpdatePayment(ctx, pay); err != nil {
			return nil, err
		}
	}

	attemptNumber, episodeStart, err := e.nextAttempt(ctx, subID, now)
	if err != nil {
		return nil, err
	}
	graceEnd := episodeStart.Add(e.policy.GracePeriod())

	decision := e.policy.Decide(attemptNumber, reason.Kind())

	result := &FailureResult{GracePeriodEnd: &graceEnd}

	if decision.Action == retry.ActionRetry {
		attempt := &retry.Attempt{
			Entity:            types.NewEntityAt(now),
			ID:                id.NewRetryID(),
			SubscriptionID:    subID,
			PaymentID:         payID,
			AttemptNumber:     attemptNumber,
			ScheduledAt:       now.Add(decision.Delay),
			Status:            retry.StatusScheduled,
			Method:            retry.MethodAutomatic,
			GracePeriodActive: decision.GraceActive,
			FailureReason:     reason,
		}
		if err := e.store.CreateRetry(ctx, attempt); err != nil {
			if errors.Is(err, ErrRetryAlreadyExists) {
				// Lost a race with another failure. Return the winner.
				if winner, werr := e.store.GetScheduledRetry(ctx, subID); werr == nil {
					result.RetryID = &winner.ID
					result.NextRetryDate = &winner.ScheduledAt
					result.RecommendedAction = ActionAwaitRetry
					return result, nil
				}
			}
			return nil, err
		}

		e.scheduler.Schedule(timer.Entry{
			Kind:     timerKindRetry,
			TargetID: attempt.ID.String(),
			FireAt:   attempt.ScheduledAt,
		})
		e.plugins.EmitRetryScheduled(ctx, attempt, attempt.ScheduledAt)

		result.RetryID = &attempt.ID
		result.NextRetryDate = &attempt.ScheduledAt
		result.RecommendedAction = ActionAwaitRetry

		e.logger.Info("retry scheduled",
			"subscription_id", subID,
			"payment_id", payID,
			"attempt", attemptNumber,
			"scheduled_at", attempt.ScheduledAt,
			"reason", reason,
		)
	} else {
		// Budget exhausted or hard decline: the dunning campaign is the
		// sole remaining recovery path.
		result.RecommendedAction = ActionManualReview
		e.plugins.EmitManualReviewFlagged(ctx, sub, string(reason))

		e.logger.Warn("retries stopped, flagging for manual review",
			"subscription_id", subID,
			"payment_id", payID,
			"attempt", attemptNumber,
			"reason", reason,
		)
	}

	if err := e.ensureCampaign(ctx, sub, now); err != nil {
		return nil, err
	}

	// First failure of the episode parks the subscription past_due;
	// subsequent failures escalate to payment_failed.
	target := subscription.StatusPastDue
	if attemptNumber > 1 {
		target = subscription.StatusPaymentFailed
	}
	if err := e.transitionSubscription(ctx, sub, target, now); err != nil {
		return nil, err
	}

	e.plugins.EmitFailureHandled(ctx, pay, string(reason), result.RetryID != nil)
	return result, nil
}

// nextAttempt computes the 1-based attempt number for the current failure
// episode and the episode's start time. An episode ends when an attempt
// succeeds or is abandoned; the next failure starts numbering over.
func (e *Engine) nextAttempt(ctx context.Context, subID id.SubscriptionID, now time.Time) (int, time.Time, error) {
	attempts, err := e.store.ListRetries(ctx, subID)
	if err != nil {
		return 0, time.Time{}, err
	}

	// Walk the trailing run of attempts belonging to the open episode.
	start := len(attempts)
	for start > 0 {
		s := attempts[start-1].Status
		if s == retry.StatusSucceeded || s == retry.StatusAbandoned {
			break
		}
		start--
	}
	episode := attempts[start:]
	if len(episode) == 0 {
		return 1, now, nil
	}
	return episode[len(episode)-1].AttemptNumber + 1, episode[0].CreatedAt, nil
}

// gracePeriodEnd returns the episode's grace boundary, or nil when no
// episode is open.
func (e *Engine) gracePeriodEnd(ctx context.Context, subID id.SubscriptionID, now time.Time) *time.Time {
	_, episodeStart, err := e.nextAttempt(ctx, subID, now)
	if err != nil {
		return nil
	}
	end := episodeStart.Add(e.policy.GracePeriod())
	return &end
}

// ensureCampaign opens a dunning campaign for the subscription unless one is
// already active, and registers the timer for its first step.
func (e *Engine) ensureCampaign(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	if _, err := e.store.GetActiveCampaign(ctx, sub.ID); err == nil {
		return nil
	}

	first := e.plan.StepAt(1)
	c := &campaign.Campaign{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewCampaignID(),
		SubscriptionID: sub.ID,
		Type:           e.plan.Type,
		CurrentStep:    0,
		TotalSteps:     e.plan.TotalSteps(),
		StartedAt:      now,
		NextActionDate: now.AddDate(0, 0, first.Day),
		Status:         campaign.StatusActive,
	}
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		if errors.Is(err, ErrCampaignAlreadyActive) {
			return nil
		}
		return err
	}

	e.scheduler.Schedule(timer.Entry{
		Kind:     timerKindCampaign,
		TargetID: c.ID.String(),
		FireAt:   c.NextActionDate,
	})
	e.plugins.EmitCampaignStarted(ctx, c)

	e.logger.Info("dunning campaign started",
		"campaign_id", c.ID,
		"subscription_id", sub.ID,
		"total_steps", c.TotalSteps,
		"first_step_at", c.NextActionDate,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Retry Executor
// ──────────────────────────────────────────────────

// ExecuteRetry runs a due retry attempt: it re-charges the payment through
// the gateway and routes the outcome. Invoked by the timer service when
// scheduled_at elapses; also safe to call directly.
//
// Idempotent: a duplicate timer delivery for an already-executed attempt
// returns the recorded outcome without re-charging.
func (e *Engine) ExecuteRetry(ctx context.Context, retryID id.RetryID) (*RetryResult, error) {
	if retryID.IsNil() {
		return nil, ValidationError{Field: "retry_id", Message: "required"}
	}

	attempt, err := e.store.GetRetry(ctx, retryID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(attempt.SubscriptionID.String())
	defer unlock()

	// Re-read under the lock: a concurrent executor may have run it.
	attempt, err = e.store.GetRetry(ctx, retryID)
	if err != nil {
		return nil, err
	}

	return e.executeRetryLocked(ctx, attempt)
}

func (e *Engine) executeRetryLocked(ctx context.Context, attempt *retry.Attempt) (*RetryResult, error) {
	now := e.clock.Now()

	// Duplicate/at-least-once delivery guard: anything past "scheduled"
	// already ran (or was retired); report the recorded outcome.
	if attempt.Status != retry.StatusScheduled {
		return e.cachedOutcome(ctx, attempt, now), nil
	}
	if e.charger == nil {
		return nil, fmt.Errorf("dunning: no gateway configured")
	}

	pay, err := e.store.GetPayment(ctx, attempt.PaymentID)
	if err != nil {
		return nil, err
	}
	sub, err := e.store.GetSubscription(ctx, attempt.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		// Cancelled while the timer was in flight. Retire the attempt.
		attempt.MarkAbandoned(now)
		if err := e.store.UpdateRetry(ctx, attempt); err != nil {
			return nil, err
		}
		return &RetryResult{RecommendedAction: ActionNone}, nil
	}

	attempt.MarkAttempted(now)
	if err := e.store.UpdateRetry(ctx, attempt); err != nil {
		return nil, err
	}

	res := e.charge(ctx, sub, pay, attempt)

	if res.Success {
		return e.recordRecovery(ctx, attempt, pay, sub, res.TransactionID)
	}

	reason := payment.ParseFailureReason(res.FailureReason)
	attempt.MarkFailed(reason, e.clock.Now())
	if err := e.store.UpdateRetry(ctx, attempt); err != nil {
		return nil, err
	}
	e.plugins.EmitRetryExecuted(ctx, attempt, false)

	e.logger.Info("retry failed",
		"retry_id", attempt.ID,
		"subscription_id", attempt.SubscriptionID,
		"attempt", attempt.AttemptNumber,
		"reason", reason,
	)

	// Route the new failure back through the handler to schedule the next
	// attempt (or stop). The attempt just marked failed keeps the episode
	// open, so numbering continues.
	fr, err := e.handleFailureLocked(ctx, pay.ID, sub.ID, reason, res.ErrorCode)
	if err != nil {
		return nil, err
	}
	return &RetryResult{
		Success:           false,
		NextRetryDate:     fr.NextRetryDate,
		GracePeriodEnd:    fr.GracePeriodEnd,
		RecommendedAction: fr.RecommendedAction,
	}, nil
}

// charge submits the re-charge with the configured deadline. A timeout or
// transport error is folded into a soft decline so it flows through the
// normal failure path.
func (e *Engine) charge(ctx context.Context, sub *subscription.Subscription, pay *payment.Payment, attempt *retry.Attempt) *gateway.ChargeResult {
	cctx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	res, err := e.charger.Charge(cctx, gateway.ChargeRequest{
		Method:         sub.PaymentMethod,
		Amount:         pay.Amount,
		IdempotencyKey: attempt.ID.String(),
		Metadata: map[string]string{
			"subscription_id": sub.ID.String(),
			"payment_id":      pay.ID.String(),
			"attempt":         fmt.Sprintf("%d", attempt.AttemptNumber),
		},
	})
	if err != nil {
		e.logger.Warn("gateway charge errored",
			"retry_id", attempt.ID,
			"error", err,
		)
		return &gateway.ChargeResult{
			Success:       false,
			FailureReason: string(payment.ReasonGatewayTimeout),
			ErrorCode:     "gateway_error",
		}
	}
	return res
}

// recordRecovery applies the success path: payment paid, attempt succeeded,
// subscription back to active with an extended period, campaign resolved
// recovered.
func (e *Engine) recordRecovery(ctx context.Context, attempt *retry.Attempt, pay *payment.Payment, sub *subscription.Subscription, txnID string) (*RetryResult, error) {
	now := e.clock.Now()

	attempt.MarkSucceeded(now)
	if err := e.store.UpdateRetry(ctx, attempt); err != nil {
		return nil, err
	}
	pay.MarkPaid(txnID, now)
	if err := e.store.UpdatePayment(ctx, pay); err != nil {
		return nil, err
	}

	if err := e.transitionSubscription(ctx, sub, subscription.StatusActive, now); err != nil {
		return nil, err
	}
	sub.ExtendPeriod(now)
	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if c, err := e.store.GetActiveCampaign(ctx, sub.ID); err == nil {
		c.Resolve(campaign.ResolutionRecovered, now)
		if err := e.store.UpdateCampaign(ctx, c); err != nil {
			return nil, err
		}
		e.plugins.EmitCampaignResolved(ctx, c, string(campaign.ResolutionRecovered))
	}

	e.plugins.EmitRetryExecuted(ctx, attempt, true)
	e.plugins.EmitPaymentRecovered(ctx, pay, attempt.AttemptNumber)

	e.logger.Info("payment recovered",
		"retry_id", attempt.ID,
		"subscription_id", sub.ID,
		"payment_id", pay.ID,
		"attempt", attempt.AttemptNumber,
	)

	return &RetryResult{Success: true, RecommendedAction: ActionNone}, nil
}

// cachedOutcome reports the result of an attempt that already ran.
func (e *Engine) cachedOutcome(ctx context.Context, attempt *retry.Attempt, now time.Time) *RetryResult {
	if attempt.Status == retry.StatusSucceeded {
		return &RetryResult{Success: true, RecommendedAction: ActionNone}
	}

	result := &RetryResult{Success: false, RecommendedAction: ActionNone}
	if next, err := e.store.GetScheduledRetry(ctx, attempt.SubscriptionID); err == nil {
		result.NextRetryDate = &next.ScheduledAt
		result.GracePeriodEnd = e.gracePeriodEnd(ctx, attempt.SubscriptionID, now)
		result.RecommendedAction = ActionAwaitRetry
	}
	return result
}

// ──────────────────────────────────────────────────
// Dunning Campaign
// ──────────────────────────────────────────────────

// AdvanceCampaign evaluates a campaign against its plan and acts on the
// verdict: fire the next step's communications, resolve on customer
// response, or abandon and cancel the subscription when steps exhaust.
// Invoked by the timer service; a stale timer for a closed campaign no-ops.
func (e *Engine) AdvanceCampaign(ctx context.Context, campaignID id.CampaignID) error {
	if campaignID.IsNil() {
		return ValidationError{Field: "campaign_id", Message: "required"}
	}

	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(c.SubscriptionID.String())
	defer unlock()

	c, err = e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status != campaign.StatusActive {
		return nil // stale timer
	}

	now := e.clock.Now()
	last := c.StartedAt
	if c.LastStepAt != nil {
		last = *c.LastStepAt
	}
	days := int(now.Sub(last).Hours() / 24)

	decision := campaign.EvaluateCampaign(c, e.plan, days)

	switch decision.Action {
	case campaign.ActionAdvance:
		return e.fireCampaignStep(ctx, c, decision.NextStep, now)

	case campaign.ActionResolve:
		c.Resolve(campaign.ResolutionRecovered, now)
		if err := e.store.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		e.plugins.EmitCampaignResolved(ctx, c, string(campaign.ResolutionRecovered))
		return nil

	case campaign.ActionAbandon:
		return e.abandonCampaign(ctx, c, now)

	default: // wait
		// A premature timer (reload after restart, step fired late) must
		// be rescheduled relative to the last step, not at the stored
		// NextActionDate: a stale date in the past would fire again in
		// the same dispatch.
		next := last.AddDate(0, 0, e.plan.GapBeforeStep(c.CurrentStep+1))
		if !next.After(now) {
			next = now.AddDate(0, 0, 1)
		}
		if !c.NextActionDate.Equal(next) {
			c.NextActionDate = next
			if err := e.store.UpdateCampaign(ctx, c); err != nil {
				return err
			}
		}
		e.scheduler.Schedule(timer.Entry{
			Kind:     timerKindCampaign,
			TargetID: c.ID.String(),
			FireAt:   next,
		})
		return nil
	}
}

// fireCampaignStep sends the step's communications and advances the
// campaign. Notification delivery is fire-and-forget: a send failure is
// logged and never fails the step.
func (e *Engine) fireCampaignStep(ctx context.Context, c *campaign.Campaign, stepNumber int, now time.Time) error {
	step := e.plan.StepAt(stepNumber)
	if step == nil {
		return ValidationError{Field: "step", Message: fmt.Sprintf("no step %d in plan", stepNumber)}
	}

	sub, err := e.store.GetSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return err
	}

	for _, ch := range step.Channels {
		n := notify.Notification{
			ID:         id.NewNotificationID(),
			TemplateID: step.Name,
			Channel:    ch,
			Recipient:  sub.OwnerID,
			Variables: map[string]string{
				"plan":   sub.Plan,
				"amount": sub.Amount.String(),
			},
		}
		if err := e.dispatcher.Send(ctx, n); err != nil {
			e.logger.Warn("notification send failed",
				"campaign_id", c.ID,
				"template", step.Name,
				"channel", ch,
				"error", err,
			)
		}
	}

	// The next evaluation is anchored on the plan's day offsets from the
	// campaign start; after the last step it lands one day later, where
	// exhaustion abandons the campaign.
	var nextAction time.Time
	if next := e.plan.StepAt(stepNumber + 1); next != nil {
		nextAction = c.StartedAt.AddDate(0, 0, next.Day)
	} else {
		nextAction = c.StartedAt.AddDate(0, 0, step.Day+1)
	}

	c.RecordStep(nextAction, now)
	if err := e.store.UpdateCampaign(ctx, c); err != nil {
		return err
	}

	e.scheduler.Schedule(timer.Entry{
		Kind:     timerKindCampaign,
		TargetID: c.ID.String(),
		FireAt:   c.NextActionDate,
	})
	e.plugins.EmitCampaignAdvanced(ctx, c, c.CurrentStep)

	e.logger.Info("dunning step fired",
		"campaign_id", c.ID,
		"subscription_id", c.SubscriptionID,
		"step", c.CurrentStep,
		"template", step.Name,
		"next_action", c.NextActionDate,
	)
	return nil
}

// abandonCampaign closes an exhausted campaign and escalates: the
// subscription is cancelled and any pending retry retired.
func (e *Engine) abandonCampaign(ctx context.Context, c *campaign.Campaign, now time.Time) error {
	c.Resolve(campaign.ResolutionAbandoned, now)
	if err := e.store.UpdateCampaign(ctx, c); err != nil {
		return err
	}

	if pending, err := e.store.GetScheduledRetry(ctx, c.SubscriptionID); err == nil {
		pending.MarkAbandoned(now)
		if err := e.store.UpdateRetry(ctx, pending); err != nil {
			return err
		}
	}

	sub, err := e.store.GetSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return err
	}
	if !sub.Status.IsTerminal() {
		if err := e.transitionSubscription(ctx, sub, subscription.StatusCancelled, now); err != nil {
			return err
		}
	}

	e.plugins.EmitCampaignResolved(ctx, c, string(campaign.ResolutionAbandoned))

	e.logger.Warn("dunning campaign abandoned",
		"campaign_id", c.ID,
		"subscription_id", c.SubscriptionID,
		"steps_sent", c.CommunicationsSent,
	)
	return nil
}

// RecordCustomerResponse marks the active campaign's response flag and
// resolves it as recovered: a customer action such as updating a card is
// itself meaningful signal, independent of retry outcome. The subscription
// returns to active only once an actual charge succeeds.
func (e *Engine) RecordCustomerResponse(ctx context.Context, subID id.SubscriptionID) error {
	if subID.IsNil() {
		return ValidationError{Field: "subscription_id", Message: "required"}
	}

	unlock := e.locks.lock(subID.String())
	defer unlock()

	c, err := e.store.GetActiveCampaign(ctx, subID)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	c.ResponseReceived = true
	c.Resolve(campaign.ResolutionRecovered, now)
	if err := e.store.UpdateCampaign(ctx, c); err != nil {
		return err
	}
	e.plugins.EmitCampaignResolved(ctx, c, string(campaign.ResolutionRecovered))

	e.logger.Info("customer response recorded",
		"campaign_id", c.ID,
		"subscription_id", subID,
		"step", c.CurrentStep,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Manual override
// ──────────────────────────────────────────────────

// TriggerManualRetry runs an immediate admin-initiated retry for a
// delinquent subscription. Any pending scheduled attempt is retired first so
// only one attempt per subscription is ever in flight; the manual attempt
// continues the episode's shared attempt numbering.
func (e *Engine) TriggerManualRetry(ctx context.Context, subID id.SubscriptionID) (*RetryResult, error) {
	if subID.IsNil() {
		return nil, ValidationError{Field: "subscription_id", Message: "required"}
	}

	unlock := e.locks.lock(subID.String())
	defer unlock()

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscription.StatusPastDue && sub.Status != subscription.StatusPaymentFailed {
		return nil, ErrSubscriptionTerminal
	}

	now := e.clock.Now()

	latest, err := e.store.GetLatestRetry(ctx, subID)
	if err != nil {
		return nil, err
	}
	payID := latest.PaymentID

	// Take the next shared number before retiring the pending attempt:
	// abandonment ends the episode as far as nextAttempt can see.
	attemptNumber, _, err := e.nextAttempt(ctx, subID, now)
	if err != nil {
		return nil, err
	}

	if pending, err := e.store.GetScheduledRetry(ctx, subID); err == nil {
		pending.MarkAbandoned(now)
		if err := e.store.UpdateRetry(ctx, pending); err != nil {
			return nil, err
		}
	}

	attempt := &retry.Attempt{
		Entity:            types.NewEntityAt(now),
		ID:                id.NewRetryID(),
		SubscriptionID:    subID,
		PaymentID:         payID,
		AttemptNumber:     attemptNumber,
		ScheduledAt:       now,
		Status:            retry.StatusScheduled,
		Method:            retry.MethodManual,
		GracePeriodActive: true,
		FailureReason:     latest.FailureReason,
	}
	if err := e.store.CreateRetry(ctx, attempt); err != nil {
		return nil, err
	}

	e.logger.Info("manual retry triggered",
		"subscription_id", subID,
		"attempt", attemptNumber,
	)

	return e.executeRetryLocked(ctx, attempt)
}

// ──────────────────────────────────────────────────
// Read API
// ──────────────────────────────────────────────────

// RetryStatus is the dashboard view of a subscription's recovery state.
type RetryStatus struct {
	Subscription *subscription.Subscription `json:"subscription"`
	Attempts     []*retry.Attempt           `json:"retry_attempts"`
	Campaigns    []*campaign.Campaign       `json:"dunning_campaigns"`
	// Summary is the plain-language account-holder view. Raw gateway
	// error codes never appear here.
	Summary string `json:"summary"`
}

// GetRetryStatus returns the recovery state for a subscription. Pure read;
// unsynchronized and may be briefly stale under concurrent recovery.
func (e *Engine) GetRetryStatus(ctx context.Context, subID id.SubscriptionID) (*RetryStatus, error) {
	if subID.IsNil() {
		return nil, ValidationError{Field: "subscription_id", Message: "required"}
	}

	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	attempts, err := e.store.ListRetries(ctx, subID)
	if err != nil {
		return nil, err
	}
	campaigns, err := e.store.ListCampaigns(ctx, subID)
	if err != nil {
		return nil, err
	}

	return &RetryStatus{
		Subscription: sub,
		Attempts:     attempts,
		Campaigns:    campaigns,
		Summary:      e.summarize(sub, attempts),
	}, nil
}

// summarize derives the account-holder-facing one-liner.
func (e *Engine) summarize(sub *subscription.Subscription, attempts []*retry.Attempt) string {
	switch sub.Status {
	case subscription.StatusActive, subscription.StatusTrialing:
		return "subscription in good standing"
	case subscription.StatusCancelled:
		return "subscription cancelled after unsuccessful payment recovery"
	case subscription.StatusExpired:
		return "subscription expired"
	}

	now := e.clock.Now()
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Status == retry.StatusScheduled {
			days := int(attempts[i].ScheduledAt.Sub(now).Hours() / 24)
			switch {
			case days <= 0:
				return "payment failed, retrying shortly"
			case days == 1:
				return "payment failed, retrying in 1 day"
			default:
				return fmt.Sprintf("payment failed, retrying in %d days", days)
			}
		}
	}
	return "payment failed, please update your payment method"
}
