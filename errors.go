package dunning

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("dunning: not found")
	ErrAlreadyExists = errors.New("dunning: already exists")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("dunning: subscription not found")
	ErrSubscriptionTerminal = errors.New("dunning: subscription is terminal")

	// Payment errors
	ErrPaymentNotFound = errors.New("dunning: payment not found")
	ErrPaymentTerminal = errors.New("dunning: payment already terminal")

	// Retry errors
	ErrRetryNotFound      = errors.New("dunning: retry attempt not found")
	ErrRetryAlreadyExists = errors.New("dunning: scheduled retry already exists")

	// Campaign errors
	ErrCampaignNotFound      = errors.New("dunning: campaign not found")
	ErrCampaignAlreadyActive = errors.New("dunning: active campaign already exists")

	// Infrastructure errors: surfaced as retryable, no partial commit.
	ErrGatewayTimeout  = errors.New("dunning: gateway timed out")
	ErrStoreNotReady   = errors.New("dunning: store not ready")
	ErrMigrationFailed = errors.New("dunning: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("dunning: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrRetryNotFound) ||
		errors.Is(err, ErrCampaignNotFound)
}

// IsRetryable returns true if the error is a transient infrastructure
// failure: the caller owns retrying the call itself with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrStoreNotReady)
}
