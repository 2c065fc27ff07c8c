// Package audithook bridges recovery lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on a
// concrete audit system. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/plugin"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                     = (*Extension)(nil)
	_ plugin.OnFailureHandled           = (*Extension)(nil)
	_ plugin.OnRetryScheduled           = (*Extension)(nil)
	_ plugin.OnRetryExecuted            = (*Extension)(nil)
	_ plugin.OnPaymentRecovered         = (*Extension)(nil)
	_ plugin.OnManualReviewFlagged      = (*Extension)(nil)
	_ plugin.OnCampaignStarted          = (*Extension)(nil)
	_ plugin.OnCampaignAdvanced         = (*Extension)(nil)
	_ plugin.OnCampaignResolved         = (*Extension)(nil)
	_ plugin.OnSubscriptionStateChanged = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. Defined
// locally so callers inject their concrete backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges recovery lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Failure and retry hooks
// ──────────────────────────────────────────────────

// OnFailureHandled implements plugin.OnFailureHandled.
func (e *Extension) OnFailureHandled(ctx context.Context, pay interface{}, reason string, willRetry bool) error {
	var payID string
	if p, ok := pay.(*payment.Payment); ok {
		payID = p.ID.String()
	}
	return e.record(ctx, ActionFailureHandled, SeverityWarning, OutcomeFailure,
		ResourcePayment, payID, CategoryPayment, nil,
		"reason", reason,
		"will_retry", willRetry,
	)
}

// OnRetryScheduled implements plugin.OnRetryScheduled.
func (e *Extension) OnRetryScheduled(ctx context.Context, attempt interface{}, at time.Time) error {
	var retryID string
	var number int
	if a, ok := attempt.(*retry.Attempt); ok {
		retryID = a.ID.String()
		number = a.AttemptNumber
	}
	return e.record(ctx, ActionRetryScheduled, SeverityInfo, OutcomeSuccess,
		ResourceRetry, retryID, CategoryRecovery, nil,
		"attempt", number,
		"scheduled_at", at,
	)
}

// OnRetryExecuted implements plugin.OnRetryExecuted.
func (e *Extension) OnRetryExecuted(ctx context.Context, attempt interface{}, success bool) error {
	action := ActionRetrySucceeded
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if !success {
		action = ActionRetryFailed
		severity = SeverityWarning
		outcome = OutcomeFailure
	}

	var retryID string
	var number int
	if a, ok := attempt.(*retry.Attempt); ok {
		retryID = a.ID.String()
		number = a.AttemptNumber
	}
	return e.record(ctx, action, severity, outcome,
		ResourceRetry, retryID, CategoryRecovery, nil,
		"attempt", number,
	)
}

// OnPaymentRecovered implements plugin.OnPaymentRecovered.
func (e *Extension) OnPaymentRecovered(ctx context.Context, pay interface{}, attemptNumber int) error {
	var payID string
	if p, ok := pay.(*payment.Payment); ok {
		payID = p.ID.String()
	}
	return e.record(ctx, ActionPaymentRecovered, SeverityInfo, OutcomeSuccess,
		ResourcePayment, payID, CategoryRecovery, nil,
		"attempt", attemptNumber,
	)
}

// OnManualReviewFlagged implements plugin.OnManualReviewFlagged.
func (e *Extension) OnManualReviewFlagged(ctx context.Context, sub interface{}, reason string) error {
	var subID string
	if s, ok := sub.(*subscription.Subscription); ok {
		subID = s.ID.String()
	}
	return e.record(ctx, ActionManualReviewFlagged, SeverityCritical, OutcomeFailure,
		ResourceSubscription, subID, CategoryRecovery, nil,
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Campaign hooks
// ──────────────────────────────────────────────────

// OnCampaignStarted implements plugin.OnCampaignStarted.
func (e *Extension) OnCampaignStarted(ctx context.Context, c interface{}) error {
	var campaignID string
	if cc, ok := c.(*campaign.Campaign); ok {
		campaignID = cc.ID.String()
	}
	return e.record(ctx, ActionCampaignStarted, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, campaignID, CategoryRecovery, nil,
		"event", "campaign_started",
	)
}

// OnCampaignAdvanced implements plugin.OnCampaignAdvanced.
func (e *Extension) OnCampaignAdvanced(ctx context.Context, c interface{}, step int) error {
	var campaignID string
	if cc, ok := c.(*campaign.Campaign); ok {
		campaignID = cc.ID.String()
	}
	return e.record(ctx, ActionCampaignAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceCampaign, campaignID, CategoryRecovery, nil,
		"step", step,
	)
}

// OnCampaignResolved implements plugin.OnCampaignResolved.
func (e *Extension) OnCampaignResolved(ctx context.Context, c interface{}, resolution string) error {
	action := ActionCampaignRecovered
	severity := SeverityInfo
	if resolution == string(campaign.ResolutionAbandoned) {
		action = ActionCampaignAbandoned
		severity = SeverityWarning
	}

	var campaignID string
	if cc, ok := c.(*campaign.Campaign); ok {
		campaignID = cc.ID.String()
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceCampaign, campaignID, CategoryRecovery, nil,
		"resolution", resolution,
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged implements plugin.OnSubscriptionStateChanged.
func (e *Extension) OnSubscriptionStateChanged(ctx context.Context, sub interface{}, from, to string) error {
	var subID string
	if s, ok := sub.(*subscription.Subscription); ok {
		subID = s.ID.String()
	}
	severity := SeverityInfo
	if to == string(subscription.StatusCancelled) {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionSubscriptionStateChanged, severity, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"from", from,
		"to", to,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
