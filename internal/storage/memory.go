package storage

import (
	"context"
	"sync"

	"waterledger/internal/core"
)

// MemoryStore keeps the snapshot in process memory. It backs tests and the
// degraded mode entered when no sqlite database can be opened.
type MemoryStore struct {
	mu sync.RWMutex
	l  *core.Ledger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, l *core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l = l.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*core.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil, core.ErrNotFound
	}
	return s.l.Clone(), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
