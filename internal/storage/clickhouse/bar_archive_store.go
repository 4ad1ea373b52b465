package clickhouse

import (
	"context"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// BarArchiveStore implements storage.BarArchive using ClickHouse. Raw bars
// are the tick granularity of the valuation history: high volume, append
// only, never updated.
type BarArchiveStore struct {
	conn *Conn
}

// NewBarArchiveStore creates a new BarArchiveStore.
func NewBarArchiveStore(conn *Conn) *BarArchiveStore {
	return &BarArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarArchive = (*BarArchiveStore)(nil)

// Insert appends one bar.
func (s *BarArchiveStore) Insert(ctx context.Context, bar *domain.BarUpdate) error {
	if bar == nil || bar.Ticker == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bar_archive (
			ticker, asset_class, open, high, low, close, volume, daily_volume, vwap, window_start, window_end
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		bar.Ticker, string(bar.AssetClass),
		bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.DailyVolume, bar.VWAP,
		time.UnixMilli(bar.StartMs).UTC(), time.UnixMilli(bar.EndMs).UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTicker retrieves archived bars for a ticker, ordered by window start.
func (s *BarArchiveStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.BarUpdate, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ticker, asset_class, open, high, low, close, volume, daily_volume, vwap, window_start, window_end
		FROM bar_archive
		WHERE ticker = ?
		ORDER BY window_start ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("get bars by ticker: %w", err)
	}
	defer rows.Close()

	var bars []*domain.BarUpdate
	for rows.Next() {
		var b domain.BarUpdate
		var class string
		var start, end time.Time
		err := rows.Scan(
			&b.Ticker, &class,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.DailyVolume, &b.VWAP,
			&start, &end,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.AssetClass = domain.AssetClass(class)
		b.StartMs = start.UnixMilli()
		b.EndMs = end.UnixMilli()
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
