package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                     []OnInit
	onShutdown                 []OnShutdown
	onFailureHandled           []OnFailureHandled
	onRetryScheduled           []OnRetryScheduled
	onRetryExecuted            []OnRetryExecuted
	onPaymentRecovered         []OnPaymentRecovered
	onManualReviewFlagged      []OnManualReviewFlagged
	onCampaignStarted          []OnCampaignStarted
	onCampaignAdvanced         []OnCampaignAdvanced
	onCampaignResolved         []OnCampaignResolved
	onSubscriptionStateChanged []OnSubscriptionStateChanged
	chargers                   []ChargerPlugin
	notifiers                  []NotifierPlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnFailureHandled); ok {
		r.onFailureHandled = append(r.onFailureHandled, v)
	}
	if v, ok := p.(OnRetryScheduled); ok {
		r.onRetryScheduled = append(r.onRetryScheduled, v)
	}
	if v, ok := p.(OnRetryExecuted); ok {
		r.onRetryExecuted = append(r.onRetryExecuted, v)
	}
	if v, ok := p.(OnPaymentRecovered); ok {
		r.onPaymentRecovered = append(r.onPaymentRecovered, v)
	}
	if v, ok := p.(OnManualReviewFlagged); ok {
		r.onManualReviewFlagged = append(r.onManualReviewFlagged, v)
	}
	if v, ok := p.(OnCampaignStarted); ok {
		r.onCampaignStarted = append(r.onCampaignStarted, v)
	}
	if v, ok := p.(OnCampaignAdvanced); ok {
		r.onCampaignAdvanced = append(r.onCampaignAdvanced, v)
	}
	if v, ok := p.(OnCampaignResolved); ok {
		r.onCampaignResolved = append(r.onCampaignResolved, v)
	}
	if v, ok := p.(OnSubscriptionStateChanged); ok {
		r.onSubscriptionStateChanged = append(r.onSubscriptionStateChanged, v)
	}
	if v, ok := p.(ChargerPlugin); ok {
		r.chargers = append(r.chargers, v)
	}
	if v, ok := p.(NotifierPlugin); ok {
		r.notifiers = append(r.notifiers, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnFailureHandled)(nil)).Elem(), "OnFailureHandled")
	checkInterface(reflect.TypeOf((*OnRetryScheduled)(nil)).Elem(), "OnRetryScheduled")
	checkInterface(reflect.TypeOf((*OnRetryExecuted)(nil)).Elem(), "OnRetryExecuted")
	checkInterface(reflect.TypeOf((*OnPaymentRecovered)(nil)).Elem(), "OnPaymentRecovered")
	checkInterface(reflect.TypeOf((*OnManualReviewFlagged)(nil)).Elem(), "OnManualReviewFlagged")
	checkInterface(reflect.TypeOf((*OnCampaignStarted)(nil)).Elem(), "OnCampaignStarted")
	checkInterface(reflect.TypeOf((*OnCampaignResolved)(nil)).Elem(), "OnCampaignResolved")
	checkInterface(reflect.TypeOf((*OnSubscriptionStateChanged)(nil)).Elem(), "OnSubscriptionStateChanged")
	checkInterface(reflect.TypeOf((*ChargerPlugin)(nil)).Elem(), "Charger")
	checkInterface(reflect.TypeOf((*NotifierPlugin)(nil)).Elem(), "Notifier")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFailureHandled emits a failure handled event.
func (r *Registry) EmitFailureHandled(ctx context.Context, pay interface{}, reason string, willRetry bool) {
	r.mu.RLock()
	plugins := r.onFailureHandled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFailureHandled(ctx, pay, reason, willRetry)
		}); err != nil {
			r.logger.Warn("plugin OnFailureHandled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRetryScheduled emits a retry scheduled event.
func (r *Registry) EmitRetryScheduled(ctx context.Context, attempt interface{}, at time.Time) {
	r.mu.RLock()
	plugins := r.onRetryScheduled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRetryScheduled(ctx, attempt, at)
		}); err != nil {
			r.logger.Warn("plugin OnRetryScheduled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRetryExecuted emits a retry executed event.
func (r *Registry) EmitRetryExecuted(ctx context.Context, attempt interface{}, success bool) {
	r.mu.RLock()
	plugins := r.onRetryExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRetryExecuted(ctx, attempt, success)
		}); err != nil {
			r.logger.Warn("plugin OnRetryExecuted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRecovered emits a payment recovered event.
func (r *Registry) EmitPaymentRecovered(ctx context.Context, pay interface{}, attemptNumber int) {
	r.mu.RLock()
	plugins := r.onPaymentRecovered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRecovered(ctx, pay, attemptNumber)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRecovered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitManualReviewFlagged emits a manual review flagged event.
func (r *Registry) EmitManualReviewFlagged(ctx context.Context, sub interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onManualReviewFlagged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnManualReviewFlagged(ctx, sub, reason)
		}); err != nil {
			r.logger.Warn("plugin OnManualReviewFlagged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignStarted emits a campaign started event.
func (r *Registry) EmitCampaignStarted(ctx context.Context, c interface{}) {
	r.mu.RLock()
	plugins := r.onCampaignStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignStarted(ctx, c)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignAdvanced emits a campaign advanced event.
func (r *Registry) EmitCampaignAdvanced(ctx context.Context, c interface{}, step int) {
	r.mu.RLock()
	plugins := r.onCampaignAdvanced
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignAdvanced(ctx, c, step)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignAdvanced failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCampaignResolved emits a campaign resolved event.
func (r *Registry) EmitCampaignResolved(ctx context.Context, c interface{}, resolution string) {
	r.mu.RLock()
	plugins := r.onCampaignResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCampaignResolved(ctx, c, resolution)
		}); err != nil {
			r.logger.Warn("plugin OnCampaignResolved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionStateChanged emits a subscription state changed event.
func (r *Registry) EmitSubscriptionStateChanged(ctx context.Context, sub interface{}, from, to string) {
	r.mu.RLock()
	plugins := r.onSubscriptionStateChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionStateChanged(ctx, sub, from, to)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionStateChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetChargers returns all registered gateway plugins.
func (r *Registry) GetChargers() []ChargerPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ChargerPlugin, len(r.chargers))
	copy(result, r.chargers)
	return result
}

// GetNotifiers returns all registered notifier plugins.
func (r *Registry) GetNotifiers() []NotifierPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]NotifierPlugin, len(r.notifiers))
	copy(result, r.notifiers)
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the recovery pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
