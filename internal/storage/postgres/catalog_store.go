package postgres

import (
	"context"
	"fmt"

	"valuation-pipeline/internal/storage"
)

// CatalogStore implements storage.SymbolCatalog against the symbols table,
// which is owned by the game subsystem.
type CatalogStore struct {
	pool *Pool
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolCatalog = (*CatalogStore)(nil)

// LookupID resolves a ticker to its symbol ID.
func (s *CatalogStore) LookupID(ctx context.Context, ticker string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM symbols WHERE ticker = $1`, ticker).Scan(&id)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("lookup symbol id: %w", err)
	}
	return id, nil
}
