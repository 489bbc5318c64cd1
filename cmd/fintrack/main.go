package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	factory, bcfg, res := cli.OpenBackend(context.Background(), logger, cfg)
	store := res.Store

	publisher := factory.CreatePublisher(context.Background(), bcfg)

	summaries := cache.NewLRUCache[core.Summary](cfg.InsightsCacheSize, cfg.InsightsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(summaries)
	cacheManager.Start(context.Background(), time.Minute)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	budgets := services.NewBudgetService(store, publisher)
	insights := services.NewInsightsService(store, summaries)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:           services.NewAccountService(store, auth.NewPasswords(cfg.BcryptCost), tokens),
		Ledger:             services.NewLedgerService(store, budgets, insights, publisher),
		Budgets:            budgets,
		Goals:              services.NewGoalService(store),
		Insights:           insights,
		Tokens:             tokens,
		Store:              store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"broker", cfg.EventBroker)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
