package memory

import (
	"context"
	"sync"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// BarArchiveStore is an in-memory implementation of storage.BarArchive.
type BarArchiveStore struct {
	mu   sync.Mutex
	bars []*domain.BarUpdate
}

// NewBarArchiveStore creates a new in-memory bar archive.
func NewBarArchiveStore() *BarArchiveStore {
	return &BarArchiveStore{}
}

// Compile-time interface check.
var _ storage.BarArchive = (*BarArchiveStore)(nil)

// Insert appends one bar.
func (s *BarArchiveStore) Insert(_ context.Context, bar *domain.BarUpdate) error {
	if bar == nil || bar.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *bar
	s.bars = append(s.bars, &clone)
	return nil
}

// Bars returns all archived bars in insertion order.
func (s *BarArchiveStore) Bars() []*domain.BarUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.BarUpdate, len(s.bars))
	for i, b := range s.bars {
		clone := *b
		out[i] = &clone
	}
	return out
}
