// Package observability provides a metrics extension for the recovery
// engine that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/dunning/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                     = (*MetricsExtension)(nil)
	_ plugin.OnInit                     = (*MetricsExtension)(nil)
	_ plugin.OnFailureHandled           = (*MetricsExtension)(nil)
	_ plugin.OnRetryScheduled           = (*MetricsExtension)(nil)
	_ plugin.OnRetryExecuted            = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecovered         = (*MetricsExtension)(nil)
	_ plugin.OnManualReviewFlagged      = (*MetricsExtension)(nil)
	_ plugin.OnCampaignStarted          = (*MetricsExtension)(nil)
	_ plugin.OnCampaignAdvanced         = (*MetricsExtension)(nil)
	_ plugin.OnCampaignResolved         = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionStateChanged = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide recovery metrics.
// Register it as an engine plugin to automatically track recovery health.
type MetricsExtension struct {
	factory MetricFactory

	// Failure metrics
	FailuresHandled   Counter
	FailuresRetryable Counter
	FailuresStopped   Counter

	// Retry metrics
	RetriesScheduled Counter
	RetriesSucceeded Counter
	RetriesFailed    Counter
	RecoveryAttempts Histogram
	RecoveryDelay    Histogram

	// Campaign metrics
	CampaignsStarted   Counter
	CampaignSteps      Counter
	CampaignsRecovered Counter
	CampaignsAbandoned Counter

	// Subscription metrics
	SubscriptionsPastDue   Counter
	SubscriptionsCancelled Counter
	SubscriptionsRestored  Counter

	// Escalation metrics
	ManualReviews Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory. Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Failure metrics
		FailuresHandled:   factory.Counter("dunning.failure.handled"),
		FailuresRetryable: factory.Counter("dunning.failure.retryable"),
		FailuresStopped:   factory.Counter("dunning.failure.stopped"),

		// Retry metrics
		RetriesScheduled: factory.Counter("dunning.retry.scheduled"),
		RetriesSucceeded: factory.Counter("dunning.retry.succeeded"),
		RetriesFailed:    factory.Counter("dunning.retry.failed"),
		RecoveryAttempts: factory.Histogram("dunning.recovery.attempts"),
		RecoveryDelay:    factory.Histogram("dunning.retry.delay_hours"),

		// Campaign metrics
		CampaignsStarted:   factory.Counter("dunning.campaign.started"),
		CampaignSteps:      factory.Counter("dunning.campaign.steps"),
		CampaignsRecovered: factory.Counter("dunning.campaign.recovered"),
		CampaignsAbandoned: factory.Counter("dunning.campaign.abandoned"),

		// Subscription metrics
		SubscriptionsPastDue:   factory.Counter("dunning.subscription.past_due"),
		SubscriptionsCancelled: factory.Counter("dunning.subscription.cancelled"),
		SubscriptionsRestored:  factory.Counter("dunning.subscription.restored"),

		// Escalation metrics
		ManualReviews: factory.Counter("dunning.manual_review.flagged"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Failure and retry hooks
// ──────────────────────────────────────────────────

// OnFailureHandled implements plugin.OnFailureHandled.
func (m *MetricsExtension) OnFailureHandled(_ context.Context, _ interface{}, _ string, willRetry bool) error {
	m.FailuresHandled.Inc()
	if willRetry {
		m.FailuresRetryable.Inc()
	} else {
		m.FailuresStopped.Inc()
	}
	return nil
}

// OnRetryScheduled implements plugin.OnRetryScheduled.
func (m *MetricsExtension) OnRetryScheduled(_ context.Context, _ interface{}, at time.Time) error {
	m.RetriesScheduled.Inc()
	m.RecoveryDelay.Observe(time.Until(at).Hours())
	return nil
}

// OnRetryExecuted implements plugin.OnRetryExecuted.
func (m *MetricsExtension) OnRetryExecuted(_ context.Context, _ interface{}, success bool) error {
	if success {
		m.RetriesSucceeded.Inc()
	} else {
		m.RetriesFailed.Inc()
	}
	return nil
}

// OnPaymentRecovered implements plugin.OnPaymentRecovered.
func (m *MetricsExtension) OnPaymentRecovered(_ context.Context, _ interface{}, attemptNumber int) error {
	m.RecoveryAttempts.Observe(float64(attemptNumber))
	return nil
}

// OnManualReviewFlagged implements plugin.OnManualReviewFlagged.
func (m *MetricsExtension) OnManualReviewFlagged(_ context.Context, _ interface{}, _ string) error {
	m.ManualReviews.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Campaign hooks
// ──────────────────────────────────────────────────

// OnCampaignStarted implements plugin.OnCampaignStarted.
func (m *MetricsExtension) OnCampaignStarted(_ context.Context, _ interface{}) error {
	m.CampaignsStarted.Inc()
	return nil
}

// OnCampaignAdvanced implements plugin.OnCampaignAdvanced.
func (m *MetricsExtension) OnCampaignAdvanced(_ context.Context, _ interface{}, _ int) error {
	m.CampaignSteps.Inc()
	return nil
}

// OnCampaignResolved implements plugin.OnCampaignResolved.
func (m *MetricsExtension) OnCampaignResolved(_ context.Context, _ interface{}, resolution string) error {
	if resolution == "recovered" {
		m.CampaignsRecovered.Inc()
	} else {
		m.CampaignsAbandoned.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged implements plugin.OnSubscriptionStateChanged.
func (m *MetricsExtension) OnSubscriptionStateChanged(_ context.Context, _ interface{}, _, to string) error {
	switch to {
	case "past_due":
		m.SubscriptionsPastDue.Inc()
	case "cancelled":
		m.SubscriptionsCancelled.Inc()
	case "active":
		m.SubscriptionsRestored.Inc()
	}
	return nil
}
