package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// RollupStore is an in-memory implementation of storage.RollupStore.
type RollupStore struct {
	mu   sync.Mutex
	data map[string][]*domain.RollupPoint // keyed by holder|granularity, boundary ASC
}

// NewRollupStore creates a new in-memory rollup store.
func NewRollupStore() *RollupStore {
	return &RollupStore{data: make(map[string][]*domain.RollupPoint)}
}

// Compile-time interface check.
var _ storage.RollupStore = (*RollupStore)(nil)

func rollupKey(holderID int64, g domain.Granularity) string {
	return fmt.Sprintf("%d|%s", holderID, g)
}

// Upsert updates the row at the boundary in place while its bucket is still
// open, otherwise appends a new row at the new boundary.
func (s *RollupStore) Upsert(_ context.Context, holderID int64, g domain.Granularity, boundary time.Time, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rollupKey(holderID, g)
	rows := s.data[key]
	for _, r := range rows {
		if r.Boundary.Equal(boundary) {
			r.Value = value
			return nil
		}
	}

	s.data[key] = append(rows, &domain.RollupPoint{
		HolderID:    holderID,
		Granularity: g,
		Boundary:    boundary,
		Value:       value,
	})
	return nil
}

// GetByHolder retrieves all rollup points for a holder at one granularity.
func (s *RollupStore) GetByHolder(_ context.Context, holderID int64, g domain.Granularity) ([]*domain.RollupPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.data[rollupKey(holderID, g)]
	out := make([]*domain.RollupPoint, len(rows))
	for i, p := range rows {
		clone := *p
		out[i] = &clone
	}
	return out, nil
}
