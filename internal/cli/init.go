// Package cli provides common CLI initialization utilities shared by
// cmd/bilancio, cmd/recurring-worker and cmd/ledger-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bilancio/internal/backend"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for component and installs it as
// the slog default.
func SetupLogger(component string) *applog.Logger {
	logger := applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: component})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured ledger store and optional event publisher.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return be
}

// Engine bundles the ledger services wired to one backend.
type Engine struct {
	Cutoff    services.CutoffPolicy
	Templates *services.LedgerTemplater
	Ledgers   *services.LedgerService
	Splitter  *services.InstallmentSplitter
	Recurring *services.RecurringProcessor
}

func NewEngine(cfg *config.Config, be *backend.BackendResult) (Engine, error) {
	cutoff, err := services.ParseCutoffPolicy(cfg.RecurringCutoff)
	if err != nil {
		return Engine{}, err
	}
	templates := services.NewLedgerTemplater(be.Store, cfg.DefaultCurrency)
	return Engine{
		Cutoff:    cutoff,
		Templates: templates,
		Ledgers:   services.NewLedgerService(be.Store),
		Splitter:  services.NewInstallmentSplitter(be.Store, templates, be.Publisher),
		Recurring: services.NewRecurringProcessor(be.Store, templates, be.Publisher, cutoff),
	}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
