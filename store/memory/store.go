// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/dunning"
	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	dunningstore "github.com/xraph/dunning/store"
	"github.com/xraph/dunning/subscription"
)

// compile-time interface check
var _ dunningstore.Store = (*Store)(nil)

// Store keeps everything in maps guarded by one RWMutex. All writes within a
// single lock acquisition are atomic with respect to readers.
type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription
	payments      map[string]*payment.Payment
	retries       map[string]*retry.Attempt
	campaigns     map[string]*campaign.Campaign
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		payments:      make(map[string]*payment.Payment),
		retries:       make(map[string]*retry.Attempt),
		campaigns:     make(map[string]*campaign.Campaign),
	}
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return dunning.ErrAlreadyExists
	}
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub, nil
	}
	return nil, dunning.ErrSubscriptionNotFound
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return dunning.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, ownerID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.OwnerID != ownerID {
			continue
		}
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		result = append(result, sub)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListLapsedSubscriptions(_ context.Context, now time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.Lapsed(now) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID.String()]; exists {
		return dunning.ErrAlreadyExists
	}
	s.payments[p.ID.String()] = p
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[payID.String()]; ok {
		return p, nil
	}
	return nil, dunning.ErrPaymentNotFound
}

func (s *Store) UpdatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID.String()]; !ok {
		return dunning.ErrPaymentNotFound
	}
	s.payments[p.ID.String()] = p
	return nil
}

func (s *Store) ListPayments(_ context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.SubscriptionID.String() != subID.String() {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

// ==================== Retry Store ====================

func (s *Store) CreateRetry(_ context.Context, a *retry.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce: at most one scheduled attempt per subscription.
	for _, existing := range s.retries {
		if existing.SubscriptionID.String() == a.SubscriptionID.String() &&
			existing.Status == retry.StatusScheduled &&
			a.Status == retry.StatusScheduled {
			return dunning.ErrRetryAlreadyExists
		}
	}
	if _, exists := s.retries[a.ID.String()]; exists {
		return dunning.ErrAlreadyExists
	}
	s.retries[a.ID.String()] = a
	return nil
}

func (s *Store) GetRetry(_ context.Context, retryID id.RetryID) (*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.retries[retryID.String()]; ok {
		return a, nil
	}
	return nil, dunning.ErrRetryNotFound
}

func (s *Store) UpdateRetry(_ context.Context, a *retry.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.retries[a.ID.String()]; !ok {
		return dunning.ErrRetryNotFound
	}
	s.retries[a.ID.String()] = a
	return nil
}

func (s *Store) GetScheduledRetry(_ context.Context, subID id.SubscriptionID) (*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.retries {
		if a.SubscriptionID.String() == subID.String() && a.Status == retry.StatusScheduled {
			return a, nil
		}
	}
	return nil, dunning.ErrRetryNotFound
}

func (s *Store) GetLatestRetry(_ context.Context, subID id.SubscriptionID) (*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *retry.Attempt
	for _, a := range s.retries {
		if a.SubscriptionID.String() != subID.String() {
			continue
		}
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	if latest == nil {
		return nil, dunning.ErrRetryNotFound
	}
	return latest, nil
}

func (s *Store) GetRetryByPayment(_ context.Context, payID id.PaymentID) (*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.retries {
		if a.PaymentID.String() == payID.String() && !a.Status.IsTerminal() {
			return a, nil
		}
	}
	return nil, dunning.ErrRetryNotFound
}

func (s *Store) ListRetries(_ context.Context, subID id.SubscriptionID) ([]*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*retry.Attempt, 0)
	for _, a := range s.retries {
		if a.SubscriptionID.String() == subID.String() {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AttemptNumber < result[j].AttemptNumber
	})
	return result, nil
}

func (s *Store) ListDueRetries(_ context.Context, now time.Time) ([]*retry.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*retry.Attempt, 0)
	for _, a := range s.retries {
		if a.Due(now) {
			result = append(result, a)
		}
	}
	return result, nil
}

// ==================== Campaign Store ====================

func (s *Store) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce: at most one active campaign per subscription.
	for _, existing := range s.campaigns {
		if existing.SubscriptionID.String() == c.SubscriptionID.String() &&
			existing.Status == campaign.StatusActive &&
			c.Status == campaign.StatusActive {
			return dunning.ErrCampaignAlreadyActive
		}
	}
	if _, exists := s.campaigns[c.ID.String()]; exists {
		return dunning.ErrAlreadyExists
	}
	s.campaigns[c.ID.String()] = c
	return nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.campaigns[campaignID.String()]; ok {
		return c, nil
	}
	return nil, dunning.ErrCampaignNotFound
}

func (s *Store) UpdateCampaign(_ context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[c.ID.String()]; !ok {
		return dunning.ErrCampaignNotFound
	}
	s.campaigns[c.ID.String()] = c
	return nil
}

func (s *Store) GetActiveCampaign(_ context.Context, subID id.SubscriptionID) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.campaigns {
		if c.SubscriptionID.String() == subID.String() && c.Status == campaign.StatusActive {
			return c, nil
		}
	}
	return nil, dunning.ErrCampaignNotFound
}

func (s *Store) ListCampaigns(_ context.Context, subID id.SubscriptionID) ([]*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if c.SubscriptionID.String() == subID.String() {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) ListDueCampaigns(_ context.Context, now time.Time) ([]*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if c.Status == campaign.StatusActive && !now.Before(c.NextActionDate) {
			result = append(result, c)
		}
	}
	return result, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// paginate applies limit/offset to a sorted slice.
func paginate[T any](in []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return []T{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
