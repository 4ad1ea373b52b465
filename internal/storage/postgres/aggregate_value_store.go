package postgres

import (
	"context"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// AggregateValueStore implements storage.AggregateValueStore using PostgreSQL.
type AggregateValueStore struct {
	pool *Pool
}

// NewAggregateValueStore creates a new AggregateValueStore.
func NewAggregateValueStore(pool *Pool) *AggregateValueStore {
	return &AggregateValueStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateValueStore = (*AggregateValueStore)(nil)

// AppendDelta reads the quantity of the changed position and the holder's
// latest aggregate value, computes the new value in-process and inserts it,
// all inside one transaction.
func (s *AggregateValueStore) AppendDelta(ctx context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error) {
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
		SELECT value FROM aggregate_value_log
		WHERE holder_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, holderID).Scan(&last)
	if err != nil && !isNotFoundError(err) {
		return 0, fmt.Errorf("read last aggregate value: %w", err)
	}

	value := last + improvement*quantity

	_, err = tx.Exec(ctx, `
		INSERT INTO aggregate_value_log (holder_id, value, recorded_at)
		VALUES ($1, $2, $3)
	`, holderID, value, at)
	if err != nil {
		return 0, fmt.Errorf("insert aggregate value: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return value, nil
}

// History retrieves all rows for the holder, ordered by time ASC.
func (s *AggregateValueStore) History(ctx context.Context, holderID int64) ([]*domain.AggregateValueEntry, error) {
	query := `
		SELECT id, holder_id, value, recorded_at
		FROM aggregate_value_log
		WHERE holder_id = $1
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, holderID)
	if err != nil {
		return nil, fmt.Errorf("get aggregate value history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AggregateValueEntry
	for rows.Next() {
		var e domain.AggregateValueEntry
		if err := rows.Scan(&e.ID, &e.HolderID, &e.Value, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan aggregate value row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate value rows: %w", err)
	}
	return entries, nil
}
