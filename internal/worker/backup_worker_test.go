package worker

import (
	"context"
	"testing"
	"time"

	"waterledger/internal/amqp"
	"waterledger/internal/core"
	"waterledger/internal/storage"
)

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	l := core.NewLedger()
	l.Customers = append(l.Customers, core.Customer{
		ID: "a", FullName: "Ahmed", MeterNumber: 101,
		Months: []core.Month{{
			Label: "يناير 2025", Status: core.Unpaid,
			Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	})
	if err := s.Save(context.Background(), l); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestCopySnapshot(t *testing.T) {
	primary := seededStore(t)
	backup := storage.NewMemoryStore()
	w := NewBackupWorker(primary, backup)

	if err := w.CopySnapshot(context.Background()); err != nil {
		t.Fatalf("copy: %v", err)
	}

	got, err := backup.Load(context.Background())
	if err != nil {
		t.Fatalf("load backup: %v", err)
	}
	if len(got.Customers) != 1 || got.Customers[0].FullName != "Ahmed" {
		t.Fatalf("backup content %+v", got)
	}
}

func TestCopySnapshotEmptyPrimary(t *testing.T) {
	w := NewBackupWorker(storage.NewMemoryStore(), storage.NewMemoryStore())
	if err := w.CopySnapshot(context.Background()); err != nil {
		t.Fatalf("empty primary should not error: %v", err)
	}
}

func TestHandleSyncMessage(t *testing.T) {
	primary := seededStore(t)
	backup := storage.NewMemoryStore()
	w := NewBackupWorker(primary, backup)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewLedgerSyncMessage(1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := backup.Load(context.Background()); err != nil {
		t.Fatalf("backup missing after sync message: %v", err)
	}
}
