// Package postgres implements the recovery store using PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	dunning "github.com/xraph/dunning"
	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/retry"
	dunningstore "github.com/xraph/dunning/store"
	"github.com/xraph/dunning/subscription"
)

// compile-time interface check
var _ dunningstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("dunning/postgres: create migration executor: %w: %w", dunning.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("dunning/postgres: %w: %w", dunning.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dunning.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, ownerID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models).Where("owner_id = ?", ownerID)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) ListLapsedSubscriptions(ctx context.Context, at time.Time) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	err := s.pg.NewSelect(&models).
		Where("auto_renew = ?", false).
		Where("status IN (?, ?)", string(subscription.StatusActive), string(subscription.StatusTrialing)).
		Where("current_period_end < ?", at).
		OrderExpr("current_period_end ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", payID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dunning.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("subscription_id = ?", subID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Retry Store ====================

func (s *Store) CreateRetry(ctx context.Context, a *retry.Attempt) error {
	m := toRetryModel(a)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		// Partial unique index: one scheduled attempt per subscription.
		return dunning.ErrRetryAlreadyExists
	}
	return err
}

func (s *Store) GetRetry(ctx context.Context, retryID id.RetryID) (*retry.Attempt, error) {
	m := new(retryModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", retryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrRetryNotFound
		}
		return nil, err
	}
	return fromRetryModel(m)
}

func (s *Store) UpdateRetry(ctx context.Context, a *retry.Attempt) error {
	m := toRetryModel(a)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dunning.ErrRetryNotFound
	}
	return nil
}

func (s *Store) GetScheduledRetry(ctx context.Context, subID id.SubscriptionID) (*retry.Attempt, error) {
	m := new(retryModel)
	err := s.pg.NewSelect(m).
		Where("subscription_id = ?", subID.String()).
		Where("status = ?", string(retry.StatusScheduled)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrRetryNotFound
		}
		return nil, err
	}
	return fromRetryModel(m)
}

func (s *Store) GetLatestRetry(ctx context.Context, subID id.SubscriptionID) (*retry.Attempt, error) {
	m := new(retryModel)
	err := s.pg.NewSelect(m).
		Where("subscription_id = ?", subID.String()).
		OrderExpr("attempt_number DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrRetryNotFound
		}
		return nil, err
	}
	return fromRetryModel(m)
}

func (s *Store) GetRetryByPayment(ctx context.Context, payID id.PaymentID) (*retry.Attempt, error) {
	m := new(retryModel)
	err := s.pg.NewSelect(m).
		Where("payment_id = ?", payID.String()).
		Where("status IN (?, ?)", string(retry.StatusScheduled), string(retry.StatusAttempted)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrRetryNotFound
		}
		return nil, err
	}
	return fromRetryModel(m)
}

func (s *Store) ListRetries(ctx context.Context, subID id.SubscriptionID) ([]*retry.Attempt, error) {
	var models []retryModel
	err := s.pg.NewSelect(&models).
		Where("subscription_id = ?", subID.String()).
		OrderExpr("attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*retry.Attempt, len(models))
	for i := range models {
		a, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) ListDueRetries(ctx context.Context, at time.Time) ([]*retry.Attempt, error) {
	var models []retryModel
	err := s.pg.NewSelect(&models).
		Where("status = ?", string(retry.StatusScheduled)).
		Where("scheduled_at <= ?", at).
		OrderExpr("scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*retry.Attempt, len(models))
	for i := range models {
		a, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Campaign Store ====================

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	m := toCampaignModel(c)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		// Partial unique index: one active campaign per subscription.
		return dunning.ErrCampaignAlreadyActive
	}
	return err
}

func (s *Store) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", campaignID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrCampaignNotFound
		}
		return nil, err
	}
	return fromCampaignModel(m)
}

func (s *Store) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	m := toCampaignModel(c)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dunning.ErrCampaignNotFound
	}
	return nil
}

func (s *Store) GetActiveCampaign(ctx context.Context, subID id.SubscriptionID) (*campaign.Campaign, error) {
	m := new(campaignModel)
	err := s.pg.NewSelect(m).
		Where("subscription_id = ?", subID.String()).
		Where("status = ?", string(campaign.StatusActive)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dunning.ErrCampaignNotFound
		}
		return nil, err
	}
	return fromCampaignModel(m)
}

func (s *Store) ListCampaigns(ctx context.Context, subID id.SubscriptionID) ([]*campaign.Campaign, error) {
	var models []campaignModel
	err := s.pg.NewSelect(&models).
		Where("subscription_id = ?", subID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*campaign.Campaign, len(models))
	for i := range models {
		c, err := fromCampaignModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) ListDueCampaigns(ctx context.Context, at time.Time) ([]*campaign.Campaign, error) {
	var models []campaignModel
	err := s.pg.NewSelect(&models).
		Where("status = ?", string(campaign.StatusActive)).
		Where("next_action_date <= ?", at).
		OrderExpr("next_action_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*campaign.Campaign, len(models))
	for i := range models {
		c, err := fromCampaignModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches PostgreSQL's unique constraint error text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
