package memory

import (
	"context"
	"sync"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions []*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Add registers a position. Used to seed the store; the pipeline itself
// never writes positions.
func (s *PositionStore) Add(p *domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *p
	s.positions = append(s.positions, &clone)
}

// StreamActiveBySymbol invokes fn for every active position holding the symbol.
func (s *PositionStore) StreamActiveBySymbol(_ context.Context, symbolID int64, fn func(*domain.Position) error) error {
	s.mu.RLock()
	matched := make([]*domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.SymbolID == symbolID && p.IsActive {
			clone := *p
			matched = append(matched, &clone)
		}
	}
	s.mu.RUnlock()

	for _, p := range matched {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Quantity returns the active quantity for (holder, symbol).
func (s *PositionStore) Quantity(holderID, symbolID int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.positions {
		if p.HolderID == holderID && p.SymbolID == symbolID && p.IsActive {
			return p.Quantity, true
		}
	}
	return 0, false
}
