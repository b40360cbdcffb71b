package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"waterledger/internal/amqp"
	"waterledger/internal/config"
	apphttp "waterledger/internal/http"
	applog "waterledger/internal/log"
	"waterledger/internal/services"
	"waterledger/internal/sheetio/excel"
	"waterledger/internal/storage"
	"waterledger/internal/worker"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.ParseLevel(cfg.LogLevel), "waterledger")
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Primary storage. When sqlite cannot be opened the server still comes
	// up on in-memory storage and reports degraded via /readyz.
	var (
		primary services.SnapshotStore
		durable = true
	)
	sqliteStore, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open primary database, falling back to memory",
			"error", err, "path", cfg.SQLiteDBPath)
		primary = storage.NewMemoryStore()
		durable = false
	} else {
		primary = sqliteStore
	}

	var recovery services.SnapshotStore
	if durable {
		backupStore, err := storage.NewSQLiteStore(cfg.BackupDBPath)
		if err != nil {
			logger.Error("Failed to open backup database, continuing without it",
				"error", err, "path", cfg.BackupDBPath)
		} else {
			recovery = backupStore
		}
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client, sync messages disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	svc := services.NewLedgerService(primary, recovery, publisher, logger, durable)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Init(ctx); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	codec := excel.New()
	srv := apphttp.NewServer(":"+cfg.Port, svc, codec, codec, cfg.AssociationName)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting waterledger server", "port", cfg.Port, "durable", durable)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// In-process backup copy. The standalone worker does the same job when
	// AMQP is configured; this ticker covers single-binary deployments.
	if durable && recovery != nil {
		w := worker.NewBackupWorker(primary, recovery)
		g.Go(func() error {
			w.RunPeriodic(ctx, cfg.BackupInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
