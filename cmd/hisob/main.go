package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hisob/internal/amqp"
	"hisob/internal/cli"
	apphttp "hisob/internal/http"
	"hisob/internal/log"
	"hisob/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	repo := be.Repository

	converter := cli.InitConverter(logger, cfg)
	amqpClient := cli.InitAMQP(logger, cfg)
	publisher := cli.Publisher(amqpClient)

	transactions := services.NewTransactionService(repo, converter, publisher)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: transactions,
		Reports:      services.NewReportService(repo, converter),
		Dashboard:    services.NewDashboardService(repo, converter),
		Budgets:      services.NewBudgetService(repo, repo, converter, publisher),
		Goals:        services.NewGoalService(repo, repo, converter, publisher),
		Converter:    converter,
		Ready:        repo.Ping,
		Base:         cfg.Base(),
		Logger:       logger,
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		cli.Cleanup(logger, 30*time.Second,
			srv.Shutdown,
			func(context.Context) error { return closeAMQP(amqpClient) },
			func(context.Context) error { return be.Cleanup() },
		)
	}()

	logger.Info("Starting hisob server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"base_currency", cfg.BaseCurrency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}

func closeAMQP(c *amqp.Client) error {
	if c == nil {
		return nil
	}
	return c.Close()
}
