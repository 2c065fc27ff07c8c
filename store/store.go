// Package store defines the unified storage interface for the recovery
// ledger: subscriptions, payments, retry attempts and dunning campaigns.
package store

import (
	"context"
	"time"

	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/subscription"
)

// Store is the unified storage interface for all recovery entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	ListSubscriptions(ctx context.Context, ownerID string, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	ListLapsedSubscriptions(ctx context.Context, now time.Time) ([]*subscription.Subscription, error)

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error)
	UpdatePayment(ctx context.Context, p *payment.Payment) error
	ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error)

	// Retry methods
	CreateRetry(ctx context.Context, a *retry.Attempt) error
	GetRetry(ctx context.Context, retryID id.RetryID) (*retry.Attempt, error)
	UpdateRetry(ctx context.Context, a *retry.Attempt) error
	GetScheduledRetry(ctx context.Context, subID id.SubscriptionID) (*retry.Attempt, error)
	GetLatestRetry(ctx context.Context, subID id.SubscriptionID) (*retry.Attempt, error)
	GetRetryByPayment(ctx context.Context, payID id.PaymentID) (*retry.Attempt, error)
	ListRetries(ctx context.Context, subID id.SubscriptionID) ([]*retry.Attempt, error)
	ListDueRetries(ctx context.Context, now time.Time) ([]*retry.Attempt, error)

	// Campaign methods
	CreateCampaign(ctx context.Context, c *campaign.Campaign) error
	GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error)
	UpdateCampaign(ctx context.Context, c *campaign.Campaign) error
	GetActiveCampaign(ctx context.Context, subID id.SubscriptionID) (*campaign.Campaign, error)
	ListCampaigns(ctx context.Context, subID id.SubscriptionID) ([]*campaign.Campaign, error)
	ListDueCampaigns(ctx context.Context, now time.Time) ([]*campaign.Campaign, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
