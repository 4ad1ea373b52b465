package domain

import "time"

// SymbolPrice is the canonical current price for a tradable symbol.
// One row per symbol; PreviousPrice and PercentChange only move when a bar
// arrives after the trading-session gap has elapsed.
type SymbolPrice struct {
	SymbolID      int64
	Ticker        string
	CurrentPrice  float64
	PreviousPrice float64
	PercentChange float64
	LastUpdatedAt time.Time
}
