package postgres

import (
	"context"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// PositionValueStore implements storage.PositionValueStore using PostgreSQL.
type PositionValueStore struct {
	pool *Pool
}

// NewPositionValueStore creates a new PositionValueStore.
func NewPositionValueStore(pool *Pool) *PositionValueStore {
	return &PositionValueStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionValueStore = (*PositionValueStore)(nil)

// AppendDelta reads the position quantity and the latest log value, computes
// the new value in-process and inserts it, all inside one transaction.
func (s *PositionValueStore) AppendDelta(ctx context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var quantity float64
	err = tx.QueryRow(ctx, `
		SELECT quantity FROM positions
		WHERE holder_id = $1 AND symbol_id = $2 AND is_active
	`, holderID, symbolID).Scan(&quantity)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("read position quantity: %w", err)
	}

	var last float64
	err = tx.QueryRow(ctx, `
		SELECT value FROM position_value_log
		WHERE holder_id = $1 AND symbol_id = $2
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, holderID, symbolID).Scan(&last)
	if err != nil && !isNotFoundError(err) {
		return 0, fmt.Errorf("read last position value: %w", err)
	}

	value := last + improvement*quantity

	_, err = tx.Exec(ctx, `
		INSERT INTO position_value_log (holder_id, symbol_id, value, recorded_at)
		VALUES ($1, $2, $3, $4)
	`, holderID, symbolID, value, at)
	if err != nil {
		return 0, fmt.Errorf("insert position value: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return value, nil
}

// History retrieves all rows for (holder, symbol), ordered by time ASC.
func (s *PositionValueStore) History(ctx context.Context, holderID, symbolID int64) ([]*domain.PositionValueEntry, error) {
	query := `
		SELECT id, holder_id, symbol_id, value, recorded_at
		FROM position_value_log
		WHERE holder_id = $1 AND symbol_id = $2
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, holderID, symbolID)
	if err != nil {
		return nil, fmt.Errorf("get position value history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.PositionValueEntry
	for rows.Next() {
		var e domain.PositionValueEntry
		if err := rows.Scan(&e.ID, &e.HolderID, &e.SymbolID, &e.Value, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan position value row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position value rows: %w", err)
	}
	return entries, nil
}
