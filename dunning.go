package dunning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/dunning/campaign"
	"github.com/xraph/dunning/gateway"
	"github.com/xraph/dunning/id"
	"github.com/xraph/dunning/notify"
	"github.com/xraph/dunning/payment"
	"github.com/xraph/dunning/plugin"
	"github.com/xraph/dunning/retry"
	"github.com/xraph/dunning/store"
	"github.com/xraph/dunning/subscription"
	"github.com/xraph/dunning/timer"
	"github.com/xraph/dunning/types"
)

// Engine is the payment-failure recovery engine. It owns the subscription
// lifecycle, retry scheduling and dunning campaigns for failed charges.
type Engine struct {
	store      store.Store
	charger    gateway.Charger
	dispatcher notify.Dispatcher
	clock      timer.Clock
	scheduler  *timer.Scheduler
	policy     *retry.Policy
	plan       *campaign.Plan
	plugins    *plugin.Registry
	logger     *slog.Logger

	// Per-subscription serialization: duplicate timers and redelivered
	// webhooks must never interleave with an in-flight retry.
	locks subLocks

	gatewayTimeout time.Duration
	skipMigrate    bool
}

// New creates a new recovery Engine.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		clock:          timer.System(),
		policy:         retry.DefaultPolicy(),
		plan:           campaign.DefaultPlan(),
		gatewayTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.dispatcher == nil {
		e.dispatcher = notify.NewLogDispatcher(e.logger)
	}
	e.scheduler = timer.NewScheduler(e.clock, e.dispatchTimer,
		timer.WithLogger(e.logger),
	)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source. Tests inject a fake clock here.
func WithClock(c timer.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithGateway sets the payment gateway client.
func WithGateway(g gateway.Charger) Option {
	return func(e *Engine) {
		e.charger = g
	}
}

// WithDispatcher sets the notification dispatcher.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithRetryPolicy overrides the default retry schedule.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithCampaignPlan overrides the default dunning escalation plan.
func WithCampaignPlan(p *campaign.Plan) Option {
	return func(e *Engine) {
		e.plan = p
	}
}

// WithGatewayTimeout sets the deadline on gateway charge calls. A timed-out
// charge is routed through the failure path as a soft decline.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.gatewayTimeout = d
	}
}

// WithoutMigrate skips store migration on Start. Use when the host
// application manages schema migrations itself.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store, initializes plugins, reloads pending work and
// launches the timer worker.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	if err := e.reloadPending(ctx); err != nil {
		return err
	}

	e.scheduler.Start(ctx)

	e.logger.Info("recovery engine started",
		"max_attempts", e.policy.MaxAttempts(),
		"grace_period", e.policy.GracePeriod(),
		"campaign_steps", e.plan.TotalSteps(),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.scheduler.Stop()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// reloadPending re-registers timers for retries and campaigns that were
// scheduled before a restart. Pending work always lands within the grace
// window, so a one-month horizon covers everything.
func (e *Engine) reloadPending(ctx context.Context) error {
	horizon := e.clock.Now().AddDate(0, 1, 0)

	attempts, err := e.store.ListDueRetries(ctx, horizon)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		e.scheduler.Schedule(timer.Entry{
			Kind:     timerKindRetry,
			TargetID: a.ID.String(),
			FireAt:   a.ScheduledAt,
		})
	}

	campaigns, err := e.store.ListDueCampaigns(ctx, horizon)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		e.scheduler.Schedule(timer.Entry{
			Kind:     timerKindCampaign,
			TargetID: c.ID.String(),
			FireAt:   c.NextActionDate,
		})
	}

	e.logger.Info("pending work reloaded",
		"retries", len(attempts),
		"campaigns", len(campaigns),
	)
	return nil
}

const (
	timerKindRetry    = "retry"
	timerKindCampaign = "campaign"
)

// dispatchTimer routes a fired timer entry to the right executor. Entries
// are at-least-once: each executor re-checks current state and no-ops when
// the work already resolved.
func (e *Engine) dispatchTimer(ctx context.Context, entry timer.Entry) {
	switch entry.Kind {
	case timerKindRetry:
		retryID, err := id.ParseRetryID(entry.TargetID)
		if err != nil {
			e.logger.Error("invalid retry timer target", "target", entry.TargetID, "error", err)
			return
		}
		if _, err := e.ExecuteRetry(ctx, retryID); err != nil {
			e.logger.Error("retry execution failed", "retry_id", entry.TargetID, "error", err)
		}
	case timerKindCampaign:
		campaignID, err := id.ParseCampaignID(entry.TargetID)
		if err != nil {
			e.logger.Error("invalid campaign timer target", "target", entry.TargetID, "error", err)
			return
		}
		if err := e.AdvanceCampaign(ctx, campaignID); err != nil {
			e.logger.Error("campaign advance failed", "campaign_id", entry.TargetID, "error", err)
		}
	default:
		e.logger.Warn("unknown timer kind", "kind", entry.Kind)
	}
}

// Tick fires all due timers at the clock's current time. Exposed so tests
// and cron-style callers can drive the engine without the background worker.
func (e *Engine) Tick(ctx context.Context) {
	e.scheduler.Dispatch(ctx)
}

// ──────────────────────────────────────────────────
// Subscription Management
// ──────────────────────────────────────────────────

// CreateSubscription creates a new subscription.
func (e *Engine) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.OwnerID == "" {
		return ValidationError{Field: "owner_id", Message: "required"}
	}
	if sub.Status == "" {
		sub.Status = subscription.StatusActive
	}
	if sub.ID.IsNil() {
		sub.ID = id.NewSubscriptionID()
	}
	now := e.clock.Now()
	sub.Entity = types.NewEntityAt(now)
	if sub.CurrentPeriodEnd.IsZero() {
		years, months := sub.BillingCycle.PeriodLength()
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = now.AddDate(years, months, 0)
	}

	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	e.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"owner", sub.OwnerID,
		"status", sub.Status,
	)
	return nil
}

// GetSubscription retrieves a subscription by ID.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// ListSubscriptions lists subscriptions for an owner.
func (e *Engine) ListSubscriptions(ctx context.Context, ownerID string, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, ownerID, opts)
}

// ExpireLapsedSubscriptions expires every subscription whose period ended
// without auto-renewal. Intended to run periodically. Returns the number of
// subscriptions expired.
func (e *Engine) ExpireLapsedSubscriptions(ctx context.Context) (int, error) {
	now := e.clock.Now()
	lapsed, err := e.store.ListLapsedSubscriptions(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range lapsed {
		unlock := e.locks.lock(sub.ID.String())

		// Re-read under the lock: a concurrent renewal may have extended
		// the period.
		current, err := e.store.GetSubscription(ctx, sub.ID)
		if err != nil {
			unlock()
			continue
		}
		if !current.Lapsed(now) {
			unlock()
			continue
		}
		if err := e.transitionSubscription(ctx, current, subscription.StatusExpired, now); err != nil {
			unlock()
			return expired, err
		}
		unlock()
		expired++
	}

	if expired > 0 {
		e.logger.Info("lapsed subscriptions expired", "count", expired)
	}
	return expired, nil
}

// ──────────────────────────────────────────────────
// Payment Management
// ──────────────────────────────────────────────────

// CreatePayment records a new charge attempt.
func (e *Engine) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if p.SubscriptionID.IsNil() {
		return ValidationError{Field: "subscription_id", Message: "required"}
	}
	if _, err := e.store.GetSubscription(ctx, p.SubscriptionID); err != nil {
		return err
	}
	if p.ID.IsNil() {
		p.ID = id.NewPaymentID()
	}
	if p.Status == "" {
		p.Status = payment.StatusCreated
	}
	p.Entity = types.NewEntityAt(e.clock.Now())

	return e.store.CreatePayment(ctx, p)
}

// GetPayment retrieves a payment by ID.
func (e *Engine) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, payID)
}

// RecordPaymentSuccess marks a pending payment paid. Used by the gateway
// webhook handler for charges that succeed outside the retry path.
func (e *Engine) RecordPaymentSuccess(ctx context.Context, payID id.PaymentID, txnID string) error {
	p, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(p.SubscriptionID.String())
	defer unlock()

	if p.Status.IsTerminal() {
		if p.Status == payment.StatusPaid {
			return nil // redelivered webhook
		}
		return ErrPaymentTerminal
	}

	p.MarkPaid(txnID, e.clock.Now())
	return e.store.UpdatePayment(ctx, p)
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

// transitionSubscription applies a state machine transition, persists it and
// notifies plugins. A self-transition is a silent no-op.
func (e *Engine) transitionSubscription(ctx context.Context, sub *subscription.Subscription, to subscription.Status, now time.Time) error {
	from := sub.Status
	if from == to {
		return nil
	}
	if err := sub.Transition(to, now); err != nil {
		return err
	}
	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	e.logger.Info("subscription state changed",
		"subscription_id", sub.ID,
		"from", from,
		"to", to,
	)
	e.plugins.EmitSubscriptionStateChanged(ctx, sub, string(from), string(to))
	return nil
}

// subLocks is a table of per-subscription mutexes. Locks are never removed;
// the table grows with the number of subscriptions ever touched, which is
// bounded and tiny per entry.
type subLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the mutex for a key, returning the unlock func.
func (l *subLocks) lock(key string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	mu, ok := l.m[key]
	if !ok {
		mu = &sync.Mutex{}
		l.m[key] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
