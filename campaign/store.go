package campaign

import (
	"context"
	"time"

	"github.com/xraph/dunning/id"
)

// Store is the persistence interface for dunning campaigns.
type Store interface {
	Create(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, campaignID id.CampaignID) (*Campaign, error)
	Update(ctx context.Context, c *Campaign) error

	// GetActive returns the single active campaign for a subscription, if
	// any. At most one active campaign may exist per subscription.
	GetActive(ctx context.Context, subID id.SubscriptionID) (*Campaign, error)

	ListBySubscription(ctx context.Context, subID id.SubscriptionID) ([]*Campaign, error)

	// ListDue returns active campaigns whose next action date has elapsed.
	// Used to reload timers after a restart.
	ListDue(ctx context.Context, now time.Time) ([]*Campaign, error)
}
