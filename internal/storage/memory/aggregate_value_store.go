package memory

import (
	"context"
	"sync"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// AggregateValueStore is an in-memory implementation of
// storage.AggregateValueStore.
type AggregateValueStore struct {
	mu        sync.Mutex
	entries   map[int64][]*domain.AggregateValueEntry
	nextID    int64
	positions *PositionStore
}

// NewAggregateValueStore creates a new in-memory aggregate value store.
func NewAggregateValueStore(positions *PositionStore) *AggregateValueStore {
	return &AggregateValueStore{
		entries:   make(map[int64][]*domain.AggregateValueEntry),
		positions: positions,
	}
}

// Compile-time interface check.
var _ storage.AggregateValueStore = (*AggregateValueStore)(nil)

// AppendDelta appends a new log row from the holder's latest aggregate value
// plus improvement x the changed position's quantity.
func (s *AggregateValueStore) AppendDelta(_ context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error) {
	quantity, ok := s.positions.Quantity(holderID, symbolID)
	if !ok {
		return 0, storage.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var last float64
	if rows := s.entries[holderID]; len(rows) > 0 {
		last = rows[len(rows)-1].Value
	}

	s.nextID++
	value := last + improvement*quantity
	s.entries[holderID] = append(s.entries[holderID], &domain.AggregateValueEntry{
		ID:         s.nextID,
		HolderID:   holderID,
		Value:      value,
		RecordedAt: at,
	})
	return value, nil
}

// Seed inserts a starting aggregate value for a holder, bypassing the
// position lookup. Test helper.
func (s *AggregateValueStore) Seed(holderID int64, value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.entries[holderID] = append(s.entries[holderID], &domain.AggregateValueEntry{
		ID:         s.nextID,
		HolderID:   holderID,
		Value:      value,
		RecordedAt: at,
	})
}

// History retrieves all rows for the holder, ordered by time ASC.
func (s *AggregateValueStore) History(_ context.Context, holderID int64) ([]*domain.AggregateValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.entries[holderID]
	out := make([]*domain.AggregateValueEntry, len(rows))
	for i, e := range rows {
		clone := *e
		out[i] = &clone
	}
	return out, nil
}
