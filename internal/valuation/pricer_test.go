package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage/memory"
)

func newTestPricer(t *testing.T, sessionGap time.Duration) (*PriceUpdater, *memory.SymbolPriceStore, *memory.Catalog) {
	t.Helper()

	prices := memory.NewSymbolPriceStore()
	catalog := memory.NewCatalog()
	return NewPriceUpdater(prices, catalog, sessionGap), prices, catalog
}

func TestPriceUpdater_FirstBarCreatesPriceRow(t *testing.T) {
	ctx := context.Background()
	pricer, prices, catalog := newTestPricer(t, 8*time.Hour)
	catalog.Add("AAPL", 1)

	now := time.Date(2025, 3, 3, 15, 30, 0, 0, time.UTC)
	update, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 0.8, Low: 0.7}, now)
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.True(t, update.Created)
	assert.Equal(t, int64(1), update.SymbolID)
	assert.InDelta(t, 0.75, update.NewPrice, 1e-9)

	sp, err := prices.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, sp.CurrentPrice, 1e-9)
	assert.Zero(t, sp.PreviousPrice)
	assert.Zero(t, sp.PercentChange)
}

func TestPriceUpdater_UnknownTickerSkipped(t *testing.T) {
	ctx := context.Background()
	pricer, prices, _ := newTestPricer(t, 8*time.Hour)

	update, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "ZZZZ", High: 1, Low: 1}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, update)

	_, err = prices.GetByTicker(ctx, "ZZZZ")
	assert.Error(t, err)
}

func TestPriceUpdater_UpdateWithinSession(t *testing.T) {
	ctx := context.Background()
	pricer, prices, catalog := newTestPricer(t, 8*time.Hour)
	catalog.Add("AAPL", 1)

	t0 := time.Date(2025, 3, 3, 15, 30, 0, 0, time.UTC)
	_, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 0.8, Low: 0.7}, t0)
	require.NoError(t, err)

	t1 := t0.Add(6 * time.Minute)
	update, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 1.73, Low: 0}, t1)
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.False(t, update.Created)
	assert.False(t, update.SessionRolled)
	assert.InDelta(t, 0.75, update.OldPrice, 1e-9)
	assert.InDelta(t, 0.865, update.NewPrice, 1e-9)

	// Session fields stay untouched on an in-session move.
	sp, err := prices.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.865, sp.CurrentPrice, 1e-9)
	assert.Zero(t, sp.PreviousPrice)
	assert.Zero(t, sp.PercentChange)
}

func TestPriceUpdater_SessionRollover(t *testing.T) {
	ctx := context.Background()
	pricer, prices, catalog := newTestPricer(t, 8*time.Hour)
	catalog.Add("AAPL", 1)

	t0 := time.Date(2025, 3, 3, 15, 30, 0, 0, time.UTC)
	_, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 2, Low: 2}, t0)
	require.NoError(t, err)

	t1 := t0.Add(9 * time.Hour)
	update, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 3, Low: 2}, t1)
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.True(t, update.SessionRolled)

	sp, err := prices.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, sp.CurrentPrice, 1e-9)
	assert.InDelta(t, 2.0, sp.PreviousPrice, 1e-9)
	assert.InDelta(t, 0.25, sp.PercentChange, 1e-9)
	assert.True(t, sp.LastUpdatedAt.Equal(t1))
}

func TestPriceUpdater_SessionRolloverFromZeroPrice(t *testing.T) {
	ctx := context.Background()
	pricer, prices, catalog := newTestPricer(t, 8*time.Hour)
	catalog.Add("AAPL", 1)

	t0 := time.Date(2025, 3, 3, 15, 30, 0, 0, time.UTC)
	_, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 0, Low: 0}, t0)
	require.NoError(t, err)

	// Division by a zero previous price must not produce Inf/NaN.
	_, err = pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: 1, Low: 1}, t0.Add(9*time.Hour))
	require.NoError(t, err)

	sp, err := prices.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Zero(t, sp.PercentChange)
}

func TestPriceUpdater_MidpointClampedAtZero(t *testing.T) {
	ctx := context.Background()
	pricer, _, catalog := newTestPricer(t, 8*time.Hour)
	catalog.Add("AAPL", 1)

	update, err := pricer.ApplyBar(ctx, domain.BarUpdate{Ticker: "AAPL", High: -1, Low: -2}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Zero(t, update.NewPrice)
}
