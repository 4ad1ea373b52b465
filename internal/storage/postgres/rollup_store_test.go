package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation-pipeline/internal/domain"
)

func TestRollupStore_UpsertUpdatesOpenBucketInPlace(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRollupStore(pool)
	boundary := time.Date(2025, 3, 3, 15, 31, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, boundary, 11.5))
	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, boundary, 16.5))

	points, err := store.GetByHolder(ctx, 10, domain.GranularityMinute)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 16.5, points[0].Value, 0.0001)
	assert.True(t, points[0].Boundary.Equal(boundary))
}

func TestRollupStore_UpsertInsertsOnNewBoundary(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRollupStore(pool)
	b0 := time.Date(2025, 3, 3, 15, 31, 0, 0, time.UTC)
	b1 := b0.Add(time.Minute)

	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, b0, 11.5))
	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, b1, 16.5))

	points, err := store.GetByHolder(ctx, 10, domain.GranularityMinute)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 11.5, points[0].Value, 0.0001)
	assert.InDelta(t, 16.5, points[1].Value, 0.0001)
}

func TestRollupStore_UpsertOnExistingNonLatestBoundary(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRollupStore(pool)
	b0 := time.Date(2025, 3, 3, 15, 31, 0, 0, time.UTC)
	b1 := b0.Add(time.Minute)

	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, b0, 11.5))
	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, b1, 16.5))

	// A write for a boundary that already has a row but is no longer the
	// latest happens when a concurrent worker raced the first insert. It
	// must settle as an update of that row, not a lost write.
	require.NoError(t, store.Upsert(ctx, 10, domain.GranularityMinute, b0, 12.0))

	points, err := store.GetByHolder(ctx, 10, domain.GranularityMinute)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 12.0, points[0].Value, 0.0001)
	assert.InDelta(t, 16.5, points[1].Value, 0.0001)
}

func TestRollupStore_GranularitiesAreIndependent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRollupStore(pool)
	at := time.Date(2025, 3, 3, 15, 30, 30, 0, time.UTC)

	for _, g := range domain.Granularities {
		require.NoError(t, store.Upsert(ctx, 10, g, g.Boundary(at), 11.5))
	}

	for _, g := range domain.Granularities {
		points, err := store.GetByHolder(ctx, 10, g)
		require.NoError(t, err)
		require.Len(t, points, 1, "granularity %s", g)
		assert.Equal(t, g, points[0].Granularity)
		assert.True(t, points[0].Boundary.Equal(g.Boundary(at)))
	}
}

func TestRollupStore_GetByHolderEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRollupStore(pool)
	points, err := store.GetByHolder(context.Background(), 999, domain.GranularityDay)
	require.NoError(t, err)
	assert.Empty(t, points)
}
