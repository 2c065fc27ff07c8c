package subscription

import (
	"context"
	"time"

	"github.com/xraph/dunning/id"
)

// Store is the persistence interface for subscriptions.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, ownerID string, opts ListOpts) ([]*Subscription, error)
	ListLapsed(ctx context.Context, now time.Time) ([]*Subscription, error)
}

// ListOpts filters subscription listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
