package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/export"
	"kakeibo/internal/log"
	"kakeibo/internal/report"
	"kakeibo/internal/storage"
)

// kakeibo-exporter listens for rebuild notifications and appends the report
// of the month that just closed to a Google Sheet.
func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: log.DefaultConfig().Level, Component: log.ComponentExport})
	log.SetDefault(logger)

	logger.Info("Starting kakeibo-exporter")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the exporter")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the exporter")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, err := export.NewSheetsExporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, cfg.GoogleCredentialFile)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	builder := report.NewBuilder(repo)

	handler := func(msg *amqp.RebuildCompletedMessage) error {
		asOf, err := core.ParseDate(msg.AsOf)
		if err != nil {
			logger.Warn("Dropping notification with bad as_of date", "as_of", msg.AsOf)
			return nil
		}

		// The month that just closed, not the one still accumulating events.
		year, month := core.AddToYearMonth(asOf.Year(), asOf.Month(), -1)
		rep, err := builder.Build(ctx, year, month)
		if err != nil {
			return err
		}
		if err := exporter.Export(ctx, rep); err != nil {
			return err
		}
		logger.Info("Monthly report exported",
			log.FieldOperation, log.OpExport,
			"year", year, "month", month,
			"net_yen", rep.NetYen)
		return nil
	}

	logger.Info("Waiting for rebuild notifications", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeRebuildCompleted(ctx, handler); err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Exporter stopped", log.FieldOperation, log.OpShutdown)
}
