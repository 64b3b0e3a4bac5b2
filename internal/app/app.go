package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/guard"
	"github.com/seqsim/gridrunner/internal/lease"
	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/seqsim/gridrunner/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	cfg       *Config
	registry  *registry.Registry
	model     *config.Model
	converter config.Converter

	artifacts *artifact.Store
	leases    *lease.Manager
	ledger    *ledger.Ledger
	guard     *guard.Guard
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with an isolated logger and registry. User-facing
// output (artifact paths, skip notices, reports) goes to outW; logs go to
// logW, so piping stdout stays clean. A nil logW falls back to outW.
//
// Startup errors are programmer or installation errors, so NewApp panics on
// them rather than limping along with a partial application.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	if logW == nil {
		logW = outW
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Merge all configuration paths into a single collection for the loader.
	// Missing paths are skipped by the loader, so summary and follow modes
	// work without a grid on disk.
	var configPaths []string
	if cfg.GridPath != "" {
		configPaths = append(configPaths, cfg.GridPath)
	}
	if cfg.ModulesPath != "" {
		configPaths = append(configPaths, cfg.ModulesPath)
	}

	cfgModel, converter, err := loader.Load(ctx, configPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	leases, err := lease.NewManager(filepath.Join(cfg.StateDir, "leases"), lease.DefaultTTL)
	if err != nil {
		panic(fmt.Errorf("failed to prepare lease directory: %w", err))
	}
	led, err := ledger.Open(filepath.Join(cfg.StateDir, "ledger.db"))
	if err != nil {
		panic(fmt.Errorf("failed to open run ledger: %w", err))
	}
	logger.Debug("Run state ready.", "state_dir", cfg.StateDir)

	app := &App{
		outW:      outW,
		logger:    logger,
		cfg:       cfg,
		model:     cfgModel,
		converter: converter,
		artifacts: artifact.NewOsStore(cfg.OutputRoot),
		leases:    leases,
		ledger:    led,
	}
	app.guard = &guard.Guard{
		Artifacts: app.artifacts,
		Leases:    leases,
		Ledger:    led,
		Out:       outW,
		Overwrite: cfg.Overwrite,
	}

	// Create and populate the registry with Go handlers.
	reg := registry.New()
	if len(modules) == 0 {
		modules = app.coreModules()
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	reg.AdoptDefinitions(cfgModel)
	logger.Debug("Registry definitions populated from config model.")

	// A mismatch between manifests and Go handlers is a programmer error.
	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	app.registry = reg
	return app
}

// Close releases the app's persistent state handles.
func (a *App) Close() error {
	return a.ledger.Close()
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Ledger returns the application's attempt ledger. This is primarily for testing.
func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}
