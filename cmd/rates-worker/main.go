package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"hisob/internal/cli"
	"hisob/internal/log"
	"hisob/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentRates)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Cleanup()

	converter := cli.InitConverter(logger, cfg)
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	publisher := cli.Publisher(amqpClient)

	repo := be.Repository
	transactions := services.NewTransactionService(repo, converter, publisher)
	goals := services.NewGoalService(repo, repo, converter, publisher)
	recurring := services.NewRecurringProcessor(repo, transactions)

	logger.Info("Starting rates-worker",
		"rates_interval", cfg.RatesRefreshInterval,
		"goal_interval", cfg.GoalRefreshInterval,
		"recurring_interval", cfg.RecurringInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cli.RunEvery(gctx, logger, "rates", cfg.RatesRefreshInterval, func(ctx context.Context) error {
			if err := converter.Refresh(ctx); err != nil {
				return err
			}
			stats := converter.Stats()
			logger.Debug("Rates refreshed", "api_calls", stats.APICalls, "cache_hits", stats.CacheHits)
			return nil
		})
		return nil
	})
	g.Go(func() error {
		cli.RunEvery(gctx, logger, "recurring", cfg.RecurringInterval, func(ctx context.Context) error {
			n, err := recurring.ProcessDue(ctx, time.Now())
			if n > 0 {
				logger.Info("Recurring incomes recorded", "count", n)
			}
			return err
		})
		return nil
	})
	g.Go(func() error {
		cli.RunEvery(gctx, logger, "goals", cfg.GoalRefreshInterval, func(ctx context.Context) error {
			n, err := goals.RefreshActive(ctx, time.Now())
			if n > 0 {
				logger.Info("Goal statuses changed", "count", n)
			}
			return err
		})
		return nil
	})
	_ = g.Wait()

	logger.Info("Rates worker stopped gracefully")
}
