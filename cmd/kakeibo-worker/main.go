package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: log.DefaultConfig().Level, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting kakeibo-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without publishing", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized, rebuild notifications enabled")
		}
	} else {
		logger.Info("AMQP disabled, rebuilds will not be announced")
	}

	materializer := services.NewMaterializer(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rebuild := func(now time.Time) {
		asOf := core.DateOf(now)
		created, err := materializer.Rebuild(ctx, asOf, cfg.HorizonMonths)
		if err != nil {
			logger.Error("Rebuild failed", log.FieldOperation, log.OpRebuild, log.FieldError, err)
			return
		}
		logger.Info("Rebuild complete",
			log.FieldOperation, log.OpRebuild,
			log.FieldEventCount, created,
			"as_of", asOf.String())

		if amqpClient == nil {
			return
		}
		msg := amqp.NewRebuildCompletedMessage(asOf.String(), cfg.HorizonMonths, created)
		if err := amqpClient.PublishRebuildCompleted(ctx, msg); err != nil {
			logger.Error("Failed to publish rebuild notification", log.FieldError, err)
		}
	}

	logger.Info("Ledger rebuild scheduled",
		"interval", cfg.RebuildInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RebuildInterval)
	defer ticker.Stop()

	rebuild(time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down kakeibo-worker", log.FieldOperation, log.OpShutdown)
			return
		case now := <-ticker.C:
			rebuild(now)
		}
	}
}
