package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"waterledger/internal/amqp"
	"waterledger/internal/core"
)

// Store is the slice of the snapshot stores the worker needs.
type Store interface {
	Load(ctx context.Context) (*core.Ledger, error)
	Save(ctx context.Context, l *core.Ledger) error
}

// BackupWorker copies the primary ledger snapshot into the backup database.
// It reacts to sync messages from the server and also runs a periodic copy
// as a safety net for lost messages.
type BackupWorker struct {
	primary Store
	backup  Store
}

func NewBackupWorker(primary, backup Store) *BackupWorker {
	return &BackupWorker{primary: primary, backup: backup}
}

// HandleSyncMessage processes one snapshot-changed notification.
func (w *BackupWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing ledger sync message", "revision", msg.Revision)
	return w.CopySnapshot(ctx)
}

// CopySnapshot reads the primary and writes it to the backup. An empty
// primary is not an error; there is just nothing to protect yet.
func (w *BackupWorker) CopySnapshot(ctx context.Context) error {
	l, err := w.primary.Load(ctx)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Primary has no snapshot yet, nothing to back up")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load primary snapshot: %w", err)
	}

	if err := w.backup.Save(ctx, l); err != nil {
		return fmt.Errorf("write backup snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Backup snapshot written", "customers", len(l.Customers))
	return nil
}

// RunPeriodic copies the snapshot on a fixed interval until the context
// ends.
func (w *BackupWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.CopySnapshot(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "error", err)
			}
		}
	}
}
