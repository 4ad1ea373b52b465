package storage

import (
	"context"
	"time"

	"valuation-pipeline/internal/domain"
)

// SymbolCatalog resolves tickers against the externally owned symbol table.
type SymbolCatalog interface {
	// LookupID resolves a ticker to its symbol ID. Returns ErrNotFound
	// for tickers absent from the catalog.
	LookupID(ctx context.Context, ticker string) (int64, error)
}

// SymbolPriceStore provides access to canonical symbol prices.
type SymbolPriceStore interface {
	// GetByTicker retrieves the price row for a ticker. Returns ErrNotFound
	// if the symbol has never been priced.
	GetByTicker(ctx context.Context, ticker string) (*domain.SymbolPrice, error)

	// Insert creates the first price row for a symbol. Returns
	// ErrDuplicateKey if one exists.
	Insert(ctx context.Context, p *domain.SymbolPrice) error

	// UpdateCurrent moves the current price within an open trading session.
	UpdateCurrent(ctx context.Context, symbolID int64, price float64, at time.Time) error

	// UpdateSession rolls the symbol into a new trading session: snapshots
	// the previous price and percent change alongside the new current price.
	UpdateSession(ctx context.Context, symbolID int64, price, previous, percentChange float64, at time.Time) error
}

// PositionStore provides read access to the game subsystem's positions.
type PositionStore interface {
	// StreamActiveBySymbol invokes fn for every active position holding the
	// symbol, one row at a time. A non-nil error from fn aborts the stream
	// and is returned. The full holder list is never materialized.
	StreamActiveBySymbol(ctx context.Context, symbolID int64, fn func(*domain.Position) error) error
}

// PositionValueStore provides access to the per-(holder, symbol) value log.
type PositionValueStore interface {
	// AppendDelta appends a new log row whose value is the latest row's
	// value plus improvement x the position's quantity, and returns the new
	// value. The read and insert happen in one transaction. Returns
	// ErrNotFound if the holder has no active position in the symbol.
	AppendDelta(ctx context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error)

	// History retrieves all rows for (holder, symbol), ordered by time ASC.
	History(ctx context.Context, holderID, symbolID int64) ([]*domain.PositionValueEntry, error)
}

// AggregateValueStore provides access to the per-holder all-holdings log.
type AggregateValueStore interface {
	// AppendDelta appends a new log row whose value is the holder's latest
	// aggregate value plus improvement x the quantity of the one position
	// that changed, and returns the new value.
	AppendDelta(ctx context.Context, holderID, symbolID int64, improvement float64, at time.Time) (float64, error)

	// History retrieves all rows for the holder, ordered by time ASC.
	History(ctx context.Context, holderID int64) ([]*domain.AggregateValueEntry, error)
}

// RollupStore provides access to the fixed-bucket downsample tables.
type RollupStore interface {
	// Upsert writes the holder's aggregate value at a bucket boundary.
	// While the holder's latest bucket is still the given boundary the row
	// is updated in place; once the boundary has advanced a new row is
	// inserted.
	Upsert(ctx context.Context, holderID int64, g domain.Granularity, boundary time.Time, value float64) error

	// GetByHolder retrieves all rollup points for a holder at one
	// granularity, ordered by boundary ASC.
	GetByHolder(ctx context.Context, holderID int64, g domain.Granularity) ([]*domain.RollupPoint, error)
}

// BarArchive stores every accepted raw bar, the tick granularity of the
// valuation history. Append-only.
type BarArchive interface {
	// Insert appends one bar.
	Insert(ctx context.Context, bar *domain.BarUpdate) error
}
