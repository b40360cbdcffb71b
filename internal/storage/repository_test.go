package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"waterledger/internal/core"
)

func testLedger() *core.Ledger {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &core.Ledger{
		PricePerTon: 5,
		Customers: []core.Customer{{
			ID: "a", FullName: "Ahmed", MeterNumber: 101,
			Months: []core.Month{{
				Label: core.PeriodLabel(jan), OldReading: 100, NewReading: 110,
				Consumption: 10, TotalPrice: 50, Status: core.Paid, Date: jan,
			}},
		}},
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, testLedger()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Customers) != 1 || got.Customers[0].Months[0].TotalPrice != 50 {
		t.Fatalf("round trip lost data: %+v", got)
	}

	// Saving again overwrites the single slot.
	l2 := testLedger()
	l2.PricePerTon = 8
	if err := store.Save(ctx, l2); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if got.PricePerTon != 8 {
		t.Fatalf("expected updated snapshot, got price %v", got.PricePerTon)
	}

	if _, err := store.UpdatedAt(ctx); err != nil {
		t.Fatalf("updated at: %v", err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Save(ctx, testLedger()); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if got.Customers[0].FullName != "Ahmed" {
		t.Fatalf("data lost across reopen: %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty memory store: %v", err)
	}

	l := testLedger()
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// The store holds its own copy on both sides.
	got.Customers[0].FullName = "changed"
	again, _ := s.Load(ctx)
	if again.Customers[0].FullName != "Ahmed" {
		t.Fatalf("memory store leaked internal state")
	}
}
