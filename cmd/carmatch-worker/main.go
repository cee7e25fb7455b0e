package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carmatch/internal/amqp"
	"carmatch/internal/cli"
	"carmatch/internal/config"
	applog "carmatch/internal/log"
	"carmatch/internal/records/google"
	"carmatch/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting carmatch-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	credentialsFile := cfg.GoogleServiceAccountFile
	if credentialsFile == "" {
		credentialsFile = cfg.GoogleApplicationCredentials
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	sheet, err := google.New(initCtx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: credentialsFile,
	})
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, sheet, cfg.SyncBatchSize)
	sweeper := worker.NewSweeper(syncWorker, cfg.SyncInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			logger.Error("Sweeper stop error", "error", err)
		}
	})

	// Rows left pending by a previous run are mirrored before new messages.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeSubmissionSync(ctx, func(msg *amqp.SubmissionSyncMessage) error {
			return syncWorker.HandleSyncMessage(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
