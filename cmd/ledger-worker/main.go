package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	applog "bilancio/internal/log"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

// dedupTTL bounds how long an event id is remembered; the broker's redelivery
// window is far shorter.
const dedupTTL = 24 * time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume ledger events")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	journal, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	seen := cache.NewLRUCache[int](cfg.DedupCacheSize, dedupTTL)
	caches := cache.NewManager()
	caches.Register(seen)
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	journalWorker := worker.NewJournalWorker(journal, seen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
		return client.Run(gctx, journalWorker.HandleEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("Dedup cache status", "remembered_events", seen.Size())
			}
		}
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("Ledger-worker shutdown complete", "remembered_events", seen.Size())
	default:
		logger.Error("Ledger event consumption failed", "error", err)
		os.Exit(1)
	}
}
