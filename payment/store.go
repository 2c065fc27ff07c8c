package payment

import (
	"context"

	"github.com/xraph/dunning/id"
)

// Store is the persistence interface for payments.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, payID id.PaymentID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListBySubscription(ctx context.Context, subID id.SubscriptionID, opts ListOpts) ([]*Payment, error)
}

// ListOpts filters payment listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
