// Package plugin provides an extensible plugin system for the recovery
// engine. Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Failure and retry hooks
// ──────────────────────────────────────────────────

// OnFailureHandled is called after a payment failure has been classified
// and a recovery decision recorded.
type OnFailureHandled interface {
	Plugin
	OnFailureHandled(ctx context.Context, pay interface{}, reason string, willRetry bool) error
}

// OnRetryScheduled is called when a retry attempt is scheduled.
type OnRetryScheduled interface {
	Plugin
	OnRetryScheduled(ctx context.Context, attempt interface{}, at time.Time) error
}

// OnRetryExecuted is called after a scheduled or manual retry ran,
// regardless of outcome.
type OnRetryExecuted interface {
	Plugin
	OnRetryExecuted(ctx context.Context, attempt interface{}, success bool) error
}

// OnPaymentRecovered is called when a previously failed payment succeeds.
type OnPaymentRecovered interface {
	Plugin
	OnPaymentRecovered(ctx context.Context, pay interface{}, attemptNumber int) error
}

// OnManualReviewFlagged is called when automatic recovery gives up and the
// subscription needs human attention.
type OnManualReviewFlagged interface {
	Plugin
	OnManualReviewFlagged(ctx context.Context, sub interface{}, reason string) error
}

// ──────────────────────────────────────────────────
// Campaign hooks
// ──────────────────────────────────────────────────

// OnCampaignStarted is called when a dunning campaign begins.
type OnCampaignStarted interface {
	Plugin
	OnCampaignStarted(ctx context.Context, c interface{}) error
}

// OnCampaignAdvanced is called when a campaign moves to its next step.
type OnCampaignAdvanced interface {
	Plugin
	OnCampaignAdvanced(ctx context.Context, c interface{}, step int) error
}

// OnCampaignResolved is called when a campaign ends, with the resolution
// ("recovered" or "abandoned").
type OnCampaignResolved interface {
	Plugin
	OnCampaignResolved(ctx context.Context, c interface{}, resolution string) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged is called on every subscription status
// transition.
type OnSubscriptionStateChanged interface {
	Plugin
	OnSubscriptionStateChanged(ctx context.Context, sub interface{}, from, to string) error
}

// ──────────────────────────────────────────────────
// Gateway and notification extension points
// ──────────────────────────────────────────────────

// ChargerPlugin provides a payment gateway implementation.
type ChargerPlugin interface {
	Plugin
	Charger() interface{} // Returns gateway.Charger
}

// NotifierPlugin provides a notification dispatcher implementation.
type NotifierPlugin interface {
	Plugin
	Dispatcher() interface{} // Returns notify.Dispatcher
}
