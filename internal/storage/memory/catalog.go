package memory

import (
	"context"
	"sync"

	"valuation-pipeline/internal/storage"
)

// Catalog is an in-memory implementation of storage.SymbolCatalog.
type Catalog struct {
	mu  sync.RWMutex
	ids map[string]int64
}

// NewCatalog creates a new in-memory symbol catalog.
func NewCatalog() *Catalog {
	return &Catalog{ids: make(map[string]int64)}
}

// Compile-time interface check.
var _ storage.SymbolCatalog = (*Catalog)(nil)

// Add registers a ticker with its symbol ID.
func (c *Catalog) Add(ticker string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[ticker] = id
}

// LookupID resolves a ticker to its symbol ID.
func (c *Catalog) LookupID(_ context.Context, ticker string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.ids[ticker]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return id, nil
}
