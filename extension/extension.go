// Package extension provides the Forge extension adapter for Dunning.
//
// It implements the forge.Extension interface to integrate the payment
// recovery engine into a Forge application with DI registration and
// lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.dunning" or
// "dunning" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	dunning "github.com/xraph/dunning"
	"github.com/xraph/dunning/store"
	"github.com/xraph/dunning/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "dunning"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Payment failure recovery and dunning engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Dunning as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *dunning.Engine
	store      store.Store
	engineOpts []dunning.Option
}

// New creates a new Dunning Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying recovery engine.
// This is nil until Register is called.
func (e *Extension) Engine() *dunning.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildEngineOpts()

	e.engine = dunning.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*dunning.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("dunning: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return dunning.ErrStoreNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", dunning.ErrStoreNotReady, err)
	}
	return nil
}

// buildEngineOpts constructs dunning.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []dunning.Option {
	opts := make([]dunning.Option, 0, len(e.engineOpts)+2)

	if e.config.GatewayTimeout > 0 {
		opts = append(opts, dunning.WithGatewayTimeout(e.config.GatewayTimeout))
	}
	if e.config.DisableMigrate {
		opts = append(opts, dunning.WithoutMigrate())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("dunning: configuration is required but not found in config files; " +
				"ensure 'extensions.dunning' or 'dunning' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("dunning: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("gateway_timeout", e.config.GatewayTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.dunning" first (namespaced pattern).
	if cm.IsSet("extensions.dunning") {
		if err := cm.Bind("extensions.dunning", &cfg); err == nil {
			e.Logger().Debug("dunning: loaded config from file",
				forge.F("key", "extensions.dunning"),
			)
			return cfg, true
		}
		e.Logger().Warn("dunning: failed to bind extensions.dunning config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "dunning" key.
	if cm.IsSet("dunning") {
		if err := cm.Bind("dunning", &cfg); err == nil {
			e.Logger().Debug("dunning: loaded config from file",
				forge.F("key", "dunning"),
			)
			return cfg, true
		}
		e.Logger().Warn("dunning: failed to bind dunning config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.GatewayTimeout == 0 {
		cfg.GatewayTimeout = defaults.GatewayTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.GatewayTimeout == 0 && programmaticConfig.GatewayTimeout != 0 {
		yamlConfig.GatewayTimeout = programmaticConfig.GatewayTimeout
	}

	return e.mergeWithDefaults(yamlConfig)
}
