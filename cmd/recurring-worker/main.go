package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == backend.MemoryBackend.String() {
		logger.Warn("Memory backend selected, generated entries are not shared with the API server")
	}

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

	tick := func() {
		today := core.NewDateFromTime(time.Now())
		err := services.Retry(ctx, applog.OpTick, cfg.RetryAttempts, func(ctx context.Context) error {
			sum, err := eng.Recurring.TickAll(ctx, today)
			if err != nil {
				return err
			}
			for _, f := range sum.Failures {
				logger.Warn("Recurring rule not materialized", applog.FieldRuleID, f.RuleID, "error", f.Reason)
			}
			logger.Info("Recurring tick complete",
				"today", today.String(),
				"rules_checked", sum.RulesChecked,
				"rules_advanced", sum.RulesAdvanced,
				"generated", sum.Generated,
				"created_ledgers", len(sum.CreatedLedgers))
			return nil
		})
		if err != nil {
			logger.Error("Recurring tick failed", "error", err)
		}
	}

	// Catch up immediately; the schedule only covers future runs.
	tick()

	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	if _, err := c.AddFunc(cfg.RecurringSchedule, tick); err != nil {
		logger.Error("Invalid recurring schedule", "error", err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Recurring schedule registered",
		"schedule", cfg.RecurringSchedule,
		"cutoff", eng.Cutoff.String(),
		"backend", cfg.DataBackend)

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		logger.Info("Recurring-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
