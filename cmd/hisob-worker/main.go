package main

import (
	"context"
	"flag"
	"os"
	"time"

	"hisob/internal/amqp"
	"hisob/internal/cli"
	"hisob/internal/config"
	"hisob/internal/log"
	"hisob/internal/period"
	ports "hisob/internal/sheets"
	gsheet "hisob/internal/sheets/google"
	mem "hisob/internal/sheets/memory"
	"hisob/internal/worker"
)

func main() {
	backfillUser := flag.Int64("backfill-user", 0, "export the user's missing transactions and exit")
	backfillPeriod := flag.String("backfill-period", "", "period token bounding the backfill, empty for all history")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx = log.NewContext(ctx, logger)

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Cleanup()

	exporter, err := newExporter(ctx, logger, cfg)
	if err != nil {
		logger.WithComponent(log.ComponentSheets).Error("Failed to initialize sheet exporter",
			log.FieldError, err)
		os.Exit(1)
	}
	w := worker.NewExportWorker(be.Repository, exporter)

	if *backfillUser > 0 {
		runBackfill(ctx, logger, w, *backfillUser, *backfillPeriod)
		return
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		amqp.KeyTransactionRecorded, amqp.KeyGoalStatusChanged, amqp.KeyBudgetAlert)
	if err != nil {
		logger.WithComponent(log.ComponentAMQP).Error("Failed to initialize AMQP client",
			log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("Starting hisob-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"export_enabled", cfg.ExportEnabled)
	if err := client.Consume(ctx, w.HandleDelivery); err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func newExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (ports.TransactionExporter, error) {
	if !cfg.ExportEnabled {
		logger.Info("Sheet export disabled, rows are kept in memory")
		return mem.New(), nil
	}
	return gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
}

func runBackfill(ctx context.Context, logger *log.Logger, w *worker.ExportWorker, userID int64, token string) {
	var r period.Range
	if token != "" {
		var err error
		if r, err = period.Resolve(token, time.Now(), nil); err != nil {
			logger.Error("Invalid backfill period", log.FieldError, err, log.FieldPeriod, token)
			os.Exit(1)
		}
	}
	res, err := w.Backfill(ctx, userID, r)
	if err != nil {
		logger.Error("Backfill failed", log.FieldError, err, log.FieldUserID, userID)
		os.Exit(1)
	}
	logger.Info("Backfill completed",
		log.FieldUserID, userID,
		log.FieldPeriod, token,
		"total", res.Total,
		"exported", res.Exported,
		"skipped", res.Skipped,
		"errors", res.Errors)
}
