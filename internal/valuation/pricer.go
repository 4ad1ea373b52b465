// Package valuation turns accepted bar updates into price moves, per-holder
// deltas and downsampled value history.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// PriceUpdate is the outcome of applying one bar to the canonical price.
type PriceUpdate struct {
	SymbolID int64
	OldPrice float64
	NewPrice float64
	// Created is true when this bar produced the symbol's first price row.
	// There is no prior observation to revalue against in that case.
	Created bool
	// SessionRolled is true when the bar arrived after the session gap and
	// the previous-price snapshot was taken.
	SessionRolled bool
}

// PriceUpdater upserts the canonical current price for a symbol and rolls
// the trading session once per session gap.
type PriceUpdater struct {
	prices     storage.SymbolPriceStore
	catalog    storage.SymbolCatalog
	sessionGap time.Duration
}

// NewPriceUpdater creates a PriceUpdater. sessionGap is the elapsed time
// after which a bar is treated as opening a new trading session.
func NewPriceUpdater(prices storage.SymbolPriceStore, catalog storage.SymbolCatalog, sessionGap time.Duration) *PriceUpdater {
	return &PriceUpdater{prices: prices, catalog: catalog, sessionGap: sessionGap}
}

// ApplyBar updates the symbol's price from one bar. The new price is the
// midpoint of the bar's high and low, clamped to >= 0. Returns nil (and no
// error) when the ticker is unknown to the catalog; the caller must still
// record the throttle timestamp so the catalog is not hammered.
func (u *PriceUpdater) ApplyBar(ctx context.Context, bar domain.BarUpdate, now time.Time) (*PriceUpdate, error) {
	newPrice := (bar.High + bar.Low) / 2
	if newPrice < 0 {
		newPrice = 0
	}

	sp, err := u.prices.GetByTicker(ctx, bar.Ticker)
	if errors.Is(err, storage.ErrNotFound) {
		return u.insertFirst(ctx, bar.Ticker, newPrice, now)
	}
	if err != nil {
		return nil, fmt.Errorf("get price for %s: %w", bar.Ticker, err)
	}

	old := sp.CurrentPrice
	rolled := now.Sub(sp.LastUpdatedAt) > u.sessionGap
	if rolled {
		var pct float64
		if old != 0 {
			pct = (newPrice - old) / old
		}
		if err := u.prices.UpdateSession(ctx, sp.SymbolID, newPrice, old, pct, now); err != nil {
			return nil, fmt.Errorf("roll session for %s: %w", bar.Ticker, err)
		}
	} else {
		if err := u.prices.UpdateCurrent(ctx, sp.SymbolID, newPrice, now); err != nil {
			return nil, fmt.Errorf("update current price for %s: %w", bar.Ticker, err)
		}
	}

	return &PriceUpdate{SymbolID: sp.SymbolID, OldPrice: old, NewPrice: newPrice, SessionRolled: rolled}, nil
}

func (u *PriceUpdater) insertFirst(ctx context.Context, ticker string, price float64, now time.Time) (*PriceUpdate, error) {
	id, err := u.catalog.LookupID(ctx, ticker)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil // unknown symbol, skip
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup for %s: %w", ticker, err)
	}

	sp := &domain.SymbolPrice{
		SymbolID:      id,
		Ticker:        ticker,
		CurrentPrice:  price,
		LastUpdatedAt: now,
	}
	if err := u.prices.Insert(ctx, sp); err != nil {
		return nil, fmt.Errorf("insert first price for %s: %w", ticker, err)
	}

	return &PriceUpdate{SymbolID: id, OldPrice: price, NewPrice: price, Created: true}, nil
}
