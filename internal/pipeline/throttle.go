// Package pipeline coordinates the flow from feed connector to storage:
// per-symbol throttling, the backpressure queue, the connection governor and
// the worker drain loop.
package pipeline

import (
	"sync"
	"time"
)

// DefaultCoolDown is the minimum time between full revaluation passes for
// the same symbol.
const DefaultCoolDown = 5 * time.Minute

// ThrottleCache tracks the last successful processing time per symbol. It is
// in-memory only; after a restart the first bar for each symbol is simply
// not throttled.
type ThrottleCache struct {
	mu       sync.Mutex
	last     map[string]time.Time
	coolDown time.Duration
}

// NewThrottleCache creates a ThrottleCache with the given cool-down window.
func NewThrottleCache(coolDown time.Duration) *ThrottleCache {
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &ThrottleCache{
		last:     make(map[string]time.Time),
		coolDown: coolDown,
	}
}

// ShouldProcess reports whether the symbol is outside its cool-down window.
// It does not record anything: callers mark the cache only after successful
// processing, so a failed attempt is retried on the symbol's next bar.
func (t *ThrottleCache) ShouldProcess(ticker string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[ticker]
	if !ok {
		return true
	}
	return now.Sub(last) >= t.coolDown
}

// Mark records a successful processing time for the symbol.
func (t *ThrottleCache) Mark(ticker string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[ticker] = now
}

// Clear empties the cache. Test isolation.
func (t *ThrottleCache) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}
