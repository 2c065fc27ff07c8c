package retry

import (
	"context"
	"time"

	"github.com/xraph/dunning/id"
)

// Store is the persistence interface for retry attempts.
// Attempts are append-mostly: they are created once and mutated only through
// status transitions, never deleted.
type Store interface {
	Create(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, retryID id.RetryID) (*Attempt, error)
	Update(ctx context.Context, a *Attempt) error

	// GetScheduled returns the single scheduled attempt for a subscription,
	// if any. At most one scheduled attempt may exist per subscription.
	GetScheduled(ctx context.Context, subID id.SubscriptionID) (*Attempt, error)

	// GetLatest returns the attempt with the highest attempt number for the
	// subscription, regardless of status.
	GetLatest(ctx context.Context, subID id.SubscriptionID) (*Attempt, error)

	// GetByPayment returns the non-terminal attempt tied to a payment, used
	// for webhook redelivery idempotency.
	GetByPayment(ctx context.Context, payID id.PaymentID) (*Attempt, error)

	ListBySubscription(ctx context.Context, subID id.SubscriptionID) ([]*Attempt, error)

	// ListDue returns scheduled attempts whose fire time has elapsed.
	// Used to reload timers after a restart.
	ListDue(ctx context.Context, now time.Time) ([]*Attempt, error)
}
