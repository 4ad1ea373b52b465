package pipeline

import "sync"

// DefaultPoolCeiling caps concurrent storage connections held by workers.
// It deliberately leaves headroom under the storage engine's own connection
// cap, which other subsystems share.
const DefaultPoolCeiling = 30

// Governor bounds the number of concurrently active revaluation workers.
// Acquisition never blocks: a denied caller leaves its event queued and
// relies on a later bar to retry.
type Governor struct {
	mu      sync.Mutex
	active  int
	ceiling int
}

// NewGovernor creates a Governor with the given ceiling.
func NewGovernor(ceiling int) *Governor {
	if ceiling <= 0 {
		ceiling = DefaultPoolCeiling
	}
	return &Governor{ceiling: ceiling}
}

// TryAcquire reserves one worker slot. Returns false without blocking when
// the ceiling is reached.
func (g *Governor) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active >= g.ceiling {
		return false
	}
	g.active++
	return true
}

// Release returns a worker slot. Must be called exactly once per successful
// TryAcquire, including on error paths.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active > 0 {
		g.active--
	}
}

// Active reports the number of held slots.
func (g *Governor) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
