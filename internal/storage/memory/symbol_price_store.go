package memory

import (
	"context"
	"sync"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// SymbolPriceStore is an in-memory implementation of storage.SymbolPriceStore.
type SymbolPriceStore struct {
	mu       sync.RWMutex
	byTicker map[string]*domain.SymbolPrice
	byID     map[int64]*domain.SymbolPrice
}

// NewSymbolPriceStore creates a new in-memory symbol price store.
func NewSymbolPriceStore() *SymbolPriceStore {
	return &SymbolPriceStore{
		byTicker: make(map[string]*domain.SymbolPrice),
		byID:     make(map[int64]*domain.SymbolPrice),
	}
}

// Compile-time interface check.
var _ storage.SymbolPriceStore = (*SymbolPriceStore)(nil)

// GetByTicker retrieves the price row for a ticker.
func (s *SymbolPriceStore) GetByTicker(_ context.Context, ticker string) (*domain.SymbolPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byTicker[ticker]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// Insert creates the first price row for a symbol.
func (s *SymbolPriceStore) Insert(_ context.Context, p *domain.SymbolPrice) error {
	if p == nil || p.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTicker[p.Ticker]; exists {
		return storage.ErrDuplicateKey
	}

	clone := *p
	s.byTicker[p.Ticker] = &clone
	s.byID[p.SymbolID] = &clone
	return nil
}

// UpdateCurrent moves the current price within an open trading session.
func (s *SymbolPriceStore) UpdateCurrent(_ context.Context, symbolID int64, price float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[symbolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.CurrentPrice = price
	p.LastUpdatedAt = at
	return nil
}

// UpdateSession rolls the symbol into a new trading session.
func (s *SymbolPriceStore) UpdateSession(_ context.Context, symbolID int64, price, previous, percentChange float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[symbolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.CurrentPrice = price
	p.PreviousPrice = previous
	p.PercentChange = percentChange
	p.LastUpdatedAt = at
	return nil
}
