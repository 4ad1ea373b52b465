package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// PositionValueStore is an in-memory implementation of
// storage.PositionValueStore. It reads quantities from a PositionStore the
// same way the Postgres store reads the positions table.
type PositionValueStore struct {
	mu        sync.Mutex
	entries   map[string][]*domain.PositionValueEntry
	nextID    int64
	positions *PositionStore
}

// NewPositionValueStore creates a new in-memory position value store.
func NewPositionValueStore(positions *PositionStore) *PositionValueStore {
	return &PositionValueStore{
		entries:   make(map[string][]*domain.PositionValueEntry),
		positions: positions,
	}
}

// Compile-time interface check.
var _ storage.PositionValueStore = (*PositionValueStore)(nil)

func positionValueKey(holderID, symbolID int64) string {
	return fmt.Sprintf("%d|%d", holderID, symbolID)
}

// AppendDelta appends a new log row from the latest value plus
// improvement x quantity and returns the new value.
func (s *PositionValueStore) AppendDelta(_ context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error) {
	quantity, ok := s.positions.Quantity(holderID, symbolID)
	if !ok {
		return 0, storage.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionValueKey(holderID, symbolID)
	var last float64
	if rows := s.entries[key]; len(rows) > 0 {
		last = rows[len(rows)-1].Value
	}

	s.nextID++
	value := last + improvement*quantity
	s.entries[key] = append(s.entries[key], &domain.PositionValueEntry{
		ID:         s.nextID,
		HolderID:   holderID,
		SymbolID:   symbolID,
		Value:      value,
		RecordedAt: at,
	})
	return value, nil
}

// History retrieves all rows for (holder, symbol), ordered by time ASC.
func (s *PositionValueStore) History(_ context.Context, holderID, symbolID int64) ([]*domain.PositionValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.entries[positionValueKey(holderID, symbolID)]
	out := make([]*domain.PositionValueEntry, len(rows))
	for i, e := range rows {
		clone := *e
		out[i] = &clone
	}
	return out, nil
}
