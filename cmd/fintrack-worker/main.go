package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	factory, bcfg, res := cli.OpenBackend(context.Background(), logger, cfg)
	store := res.Store

	// Budget alerts raised while reconciling go back onto the broker.
	publisher := factory.CreatePublisher(context.Background(), bcfg)

	budgets := services.NewBudgetService(store, publisher)
	goals := services.NewGoalService(store)
	insights := services.NewInsightsService(store, cache.NewLRUCache[core.Summary](cfg.InsightsCacheSize, cfg.InsightsCacheTTL))
	reconciler := services.NewReconciler(store, budgets, goals, insights, cfg.ReconcileConcurrency)

	mirror, err := factory.CreateMirror(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets mirror", "error", err)
		os.Exit(1)
	}
	if mirror == nil {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	} else {
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	eventWorker := worker.NewEventWorker(store, budgets, mirror)

	var consumer events.Consumer
	if bcfg.Broker != backend.NoBroker {
		consumer, err = factory.CreateConsumer(context.Background(), bcfg)
		if err != nil {
			logger.Error("Failed to initialize event consumer", "error", err, "broker", cfg.EventBroker)
			os.Exit(1)
		}
	} else {
		logger.Info("Skipping event consumption - no broker configured")
	}

	scheduler := worker.NewScheduler(reconciler, cfg.ReconcileSchedule, 10*time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Failed to stop scheduler", "error", err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close event consumer", "error", err)
			}
		}
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	})

	// Catch up on anything missed while the worker was down.
	logger.Info("Performing startup reconcile")
	scheduler.RunOnce(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.Consume(gctx, eventWorker.Handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
