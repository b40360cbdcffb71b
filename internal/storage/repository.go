package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"waterledger/internal/core"

	_ "modernc.org/sqlite"
)

// snapshotSlot is the single row each database holds. The primary and the
// backup are separate database files with the same schema, so a corrupted
// primary can be swapped for the backup wholesale.
const snapshotSlot = "current"

// SQLiteStore persists whole-ledger JSON snapshots in one sqlite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file backing the store.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Save upserts the full ledger snapshot.
func (s *SQLiteStore) Save(ctx context.Context, l *core.Ledger) error {
	payload, err := core.EncodeSnapshot(l)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_snapshots (slot, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		snapshotSlot, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: save snapshot: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// Load reads the stored snapshot. A database with no snapshot yet returns
// core.ErrNotFound so callers can fall back to the backup or an empty ledger.
func (s *SQLiteStore) Load(ctx context.Context) (*core.Ledger, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM ledger_snapshots WHERE slot = ?`, snapshotSlot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load snapshot: %v", core.ErrStorageUnavailable, err)
	}
	return core.DecodeSnapshot(payload)
}

// UpdatedAt reports when the snapshot was last written.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM ledger_snapshots WHERE slot = ?`, snapshotSlot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, core.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: read snapshot time: %v", core.ErrStorageUnavailable, err)
	}
	return time.Parse(time.RFC3339, raw)
}
