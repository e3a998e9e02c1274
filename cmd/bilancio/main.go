package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	eng, err := cli.NewEngine(cfg, be)
	if err != nil {
		logger.Error("Failed to initialize ledger engine", "error", err)
		os.Exit(1)
	}

	rates := currency.NewCachedProvider(currency.NewHTTPRateProvider(cfg.RatesBaseURL), 64, cfg.RatesCacheTTL)
	caches := cache.NewManager()
	caches.Register(rates.Cache())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	// Catch up on recurring rules before serving so reads see current ledgers.
	today := core.NewDateFromTime(time.Now())
	err = services.Retry(ctx, applog.OpStartup, cfg.RetryAttempts, func(ctx context.Context) error {
		sum, err := eng.Recurring.TickAll(ctx, today)
		if err != nil {
			return err
		}
		logger.Info("Startup recurring tick complete",
			"today", today.String(),
			"generated", sum.Generated,
			"rules_failed", len(sum.Failures))
		return nil
	})
	if err != nil {
		logger.Error("Startup recurring tick failed", "error", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledgers:   eng.Ledgers,
		Splitter:  eng.Splitter,
		Recurring: eng.Recurring,
		Projector: currency.NewProjector(rates),
	}, apphttp.Options{
		RetryAttempts:   cfg.RetryAttempts,
		WritesPerMinute: cfg.WritesPerMinute,
		Logger:          logger.WithComponent(applog.ComponentHTTP),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", be.Publisher != nil,
		"cutoff", eng.Cutoff.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", m.TotalRequests,
		"server_errors", m.ServerErrors)
}
