package extension

import (
	"time"

	dunning "github.com/xraph/dunning"
	"github.com/xraph/dunning/gateway"
	"github.com/xraph/dunning/notify"
	"github.com/xraph/dunning/plugin"
	"github.com/xraph/dunning/store"
)

// Option configures the Dunning Forge extension.
type Option func(*Extension)

// WithStore sets the store for the recovery engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a dunning.Option through to the underlying engine.
func WithEngineOption(opt dunning.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, dunning.WithPlugin(p))
	}
}

// WithGateway sets the payment gateway client used for retry charges.
func WithGateway(g gateway.Charger) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, dunning.WithGateway(g))
	}
}

// WithDispatcher sets the notification dispatcher for dunning messages.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, dunning.WithDispatcher(d))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGatewayTimeout bounds a single charge attempt against the gateway.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.GatewayTimeout = d }
}
