package audithook

// Action constants for audit events.
const (
	// Failure actions
	ActionFailureHandled      = "failure.handled"
	ActionManualReviewFlagged = "failure.manual_review"

	// Retry actions
	ActionRetryScheduled   = "retry.scheduled"
	ActionRetrySucceeded   = "retry.succeeded"
	ActionRetryFailed      = "retry.failed"
	ActionPaymentRecovered = "payment.recovered"

	// Campaign actions
	ActionCampaignStarted   = "campaign.started"
	ActionCampaignAdvanced  = "campaign.advanced"
	ActionCampaignRecovered = "campaign.recovered"
	ActionCampaignAbandoned = "campaign.abandoned"

	// Subscription actions
	ActionSubscriptionStateChanged = "subscription.state_changed"
)

// Resource constants for audit events.
const (
	ResourcePayment      = "payment"
	ResourceRetry        = "retry"
	ResourceCampaign     = "campaign"
	ResourceSubscription = "subscription"
)

// Category constants for audit events.
const (
	CategoryPayment      = "payment"
	CategoryRecovery     = "recovery"
	CategorySubscription = "subscription"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
