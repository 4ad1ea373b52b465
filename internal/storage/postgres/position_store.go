package postgres

import (
	"context"
	"fmt"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// Read-only: positions are owned by the game subsystem.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// StreamActiveBySymbol invokes fn for every active position holding the
// symbol. Rows are consumed one at a time off the driver's cursor, so the
// holder list is never materialized in memory.
func (s *PositionStore) StreamActiveBySymbol(ctx context.Context, symbolID int64, fn func(*domain.Position) error) error {
	query := `
		SELECT holder_id, symbol_id, group_id, quantity, is_active
		FROM positions
		WHERE symbol_id = $1 AND is_active
	`

	rows, err := s.pool.Query(ctx, query, symbolID)
	if err != nil {
		return fmt.Errorf("stream active positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.HolderID, &p.SymbolID, &p.GroupID, &p.Quantity, &p.IsActive); err != nil {
			return fmt.Errorf("scan position row: %w", err)
		}
		if err := fn(&p); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate position rows: %w", err)
	}
	return nil
}
