package postgres

import (
	"context"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// RollupStore implements storage.RollupStore using PostgreSQL. All three
// granularities share one table keyed by (holder, granularity, boundary).
type RollupStore struct {
	pool *Pool
}

// NewRollupStore creates a new RollupStore.
func NewRollupStore(pool *Pool) *RollupStore {
	return &RollupStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RollupStore = (*RollupStore)(nil)

// Upsert writes the holder's aggregate value at a bucket boundary. The
// holder's latest row is read first: if its boundary matches, the bucket is
// still open and the row is updated in place; otherwise a new row is
// inserted. Read and write share one transaction.
func (s *RollupStore) Upsert(ctx context.Context, holderID int64, g domain.Granularity, boundary time.Time, value float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var latestID int64
	var latestBoundary time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, bucket_at FROM value_rollups
		WHERE holder_id = $1 AND granularity = $2
		ORDER BY bucket_at DESC
		LIMIT 1
	`, holderID, string(g)).Scan(&latestID, &latestBoundary)

	switch {
	case err == nil && latestBoundary.Equal(boundary):
		_, err = tx.Exec(ctx, `UPDATE value_rollups SET value = $2 WHERE id = $1`, latestID, value)
		if err != nil {
			return fmt.Errorf("update open rollup bucket: %w", err)
		}
	case err == nil || isNotFoundError(err):
		// A concurrent writer can land the same boundary between the
		// read and this insert; the conflict clause turns the losing
		// insert into the update it would otherwise have been.
		_, err = tx.Exec(ctx, `
			INSERT INTO value_rollups (holder_id, granularity, bucket_at, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (holder_id, granularity, bucket_at) DO UPDATE SET value = EXCLUDED.value
		`, holderID, string(g), boundary, value)
		if err != nil {
			return fmt.Errorf("insert rollup bucket: %w", err)
		}
	default:
		return fmt.Errorf("read latest rollup bucket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByHolder retrieves all rollup points for a holder at one granularity.
func (s *RollupStore) GetByHolder(ctx context.Context, holderID int64, g domain.Granularity) ([]*domain.RollupPoint, error) {
	query := `
		SELECT holder_id, granularity, bucket_at, value
		FROM value_rollups
		WHERE holder_id = $1 AND granularity = $2
		ORDER BY bucket_at ASC
	`

	rows, err := s.pool.Query(ctx, query, holderID, string(g))
	if err != nil {
		return nil, fmt.Errorf("get rollups by holder: %w", err)
	}
	defer rows.Close()

	var points []*domain.RollupPoint
	for rows.Next() {
		var p domain.RollupPoint
		var gran string
		if err := rows.Scan(&p.HolderID, &gran, &p.Boundary, &p.Value); err != nil {
			return nil, fmt.Errorf("scan rollup row: %w", err)
		}
		p.Granularity = domain.Granularity(gran)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollup rows: %w", err)
	}
	return points, nil
}
