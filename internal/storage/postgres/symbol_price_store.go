package postgres

import (
	"context"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// SymbolPriceStore implements storage.SymbolPriceStore using PostgreSQL.
type SymbolPriceStore struct {
	pool *Pool
}

// NewSymbolPriceStore creates a new SymbolPriceStore.
func NewSymbolPriceStore(pool *Pool) *SymbolPriceStore {
	return &SymbolPriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolPriceStore = (*SymbolPriceStore)(nil)

// GetByTicker retrieves the price row for a ticker.
func (s *SymbolPriceStore) GetByTicker(ctx context.Context, ticker string) (*domain.SymbolPrice, error) {
	query := `
		SELECT symbol_id, ticker, current_price, previous_price, percent_change, last_updated_at
		FROM symbol_prices
		WHERE ticker = $1
	`

	var p domain.SymbolPrice
	err := s.pool.QueryRow(ctx, query, ticker).Scan(
		&p.SymbolID,
		&p.Ticker,
		&p.CurrentPrice,
		&p.PreviousPrice,
		&p.PercentChange,
		&p.LastUpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get symbol price by ticker: %w", err)
	}
	return &p, nil
}

// Insert creates the first price row for a symbol.
func (s *SymbolPriceStore) Insert(ctx context.Context, p *domain.SymbolPrice) error {
	query := `
		INSERT INTO symbol_prices (
			symbol_id, ticker, current_price, previous_price, percent_change, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		p.SymbolID,
		p.Ticker,
		p.CurrentPrice,
		p.PreviousPrice,
		p.PercentChange,
		p.LastUpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert symbol price: %w", err)
	}
	return nil
}

// UpdateCurrent moves the current price within an open trading session.
func (s *SymbolPriceStore) UpdateCurrent(ctx context.Context, symbolID int64, price float64, at time.Time) error {
	query := `
		UPDATE symbol_prices
		SET current_price = $2, last_updated_at = $3
		WHERE symbol_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, symbolID, price, at)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateSession rolls the symbol into a new trading session.
func (s *SymbolPriceStore) UpdateSession(ctx context.Context, symbolID int64, price, previous, percentChange float64, at time.Time) error {
	query := `
		UPDATE symbol_prices
		SET current_price = $2, previous_price = $3, percent_change = $4, last_updated_at = $5
		WHERE symbol_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, symbolID, price, previous, percentChange, at)
	if err != nil {
		return fmt.Errorf("update session price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
