package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"waterledger/internal/amqp"
	"waterledger/internal/config"
	applog "waterledger/internal/log"
	"waterledger/internal/storage"
	"waterledger/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.ParseLevel(cfg.LogLevel), "waterledger-worker")
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the backup worker")
		os.Exit(1)
	}

	primary, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open primary database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer primary.Close()

	backup, err := storage.NewSQLiteStore(cfg.BackupDBPath)
	if err != nil {
		logger.Error("Failed to open backup database", "error", err, "path", cfg.BackupDBPath)
		os.Exit(1)
	}
	defer backup.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.NewBackupWorker(primary, backup)

	// Catch up on anything missed while the worker was down.
	logger.Info("Performing startup backup copy")
	if err := w.CopySnapshot(ctx); err != nil {
		logger.Error("Startup backup copy failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeLedgerSync(ctx, func(msg *amqp.LedgerSyncMessage) error {
			return w.HandleSyncMessage(ctx, msg)
		})
		if err == context.Canceled {
			return nil
		}
		return err
	})

	// Periodic copy as a safety net for lost messages.
	g.Go(func() error {
		w.RunPeriodic(ctx, cfg.BackupInterval)
		return nil
	})

	logger.Info("Backup worker started", "queue", cfg.AMQPQueue, "interval", cfg.BackupInterval.String())
	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
