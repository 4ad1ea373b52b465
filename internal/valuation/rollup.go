package valuation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// DefaultFlushThreshold is the pending-batch size that triggers a flush.
const DefaultFlushThreshold = 3

// RollupWriter batches holder deltas and applies them to the value logs and
// the minute/hour/day rollups. The pending batch is one shared buffer:
// whichever worker next drains the queue flushes it first, trading strict
// ordering for throughput.
type RollupWriter struct {
	mu      sync.Mutex
	pending []domain.HolderDelta

	threshold    int
	positionLog  storage.PositionValueStore
	aggregateLog storage.AggregateValueStore
	rollups      storage.RollupStore
	logger       *zap.Logger
	now          func() time.Time
}

// RollupWriterOptions configures a RollupWriter.
type RollupWriterOptions struct {
	PositionLog  storage.PositionValueStore
	AggregateLog storage.AggregateValueStore
	Rollups      storage.RollupStore
	// Threshold is the batch size that triggers a flush. Defaults to
	// DefaultFlushThreshold.
	Threshold int
	Logger    *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewRollupWriter creates a RollupWriter.
func NewRollupWriter(opts RollupWriterOptions) *RollupWriter {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &RollupWriter{
		threshold:    threshold,
		positionLog:  opts.PositionLog,
		aggregateLog: opts.AggregateLog,
		rollups:      opts.Rollups,
		logger:       logger,
		now:          now,
	}
}

// Append adds one delta to the pending batch, flushing when the batch
// reaches the threshold.
func (w *RollupWriter) Append(ctx context.Context, d domain.HolderDelta) {
	w.mu.Lock()
	w.pending = append(w.pending, d)
	full := len(w.pending) >= w.threshold
	w.mu.Unlock()

	if full {
		w.Flush(ctx)
	}
}

// PendingLen reports the current batch size.
func (w *RollupWriter) PendingLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush applies every pending delta. A delta that fails is logged and
// discarded, never retried: the canonical price has already advanced, and
// the holder's valuation self-heals on the symbol's next bar.
func (w *RollupWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, d := range batch {
		if err := w.apply(ctx, d); err != nil {
			w.logger.Warn("discarding valuation delta",
				zap.Int64("holder_id", d.HolderID),
				zap.Int64("symbol_id", d.SymbolID),
				zap.Float64("improvement", d.Improvement),
				zap.Error(err),
			)
		}
	}
}

// apply writes one delta through all four time series: the position log, the
// aggregate log, and the three bucket rollups fed by the new aggregate value.
func (w *RollupWriter) apply(ctx context.Context, d domain.HolderDelta) error {
	at := w.now()

	if _, err := w.positionLog.AppendDelta(ctx, d.HolderID, d.SymbolID, d.Improvement, at); err != nil {
		return err
	}

	aggregate, err := w.aggregateLog.AppendDelta(ctx, d.HolderID, d.SymbolID, d.Improvement, at)
	if err != nil {
		return err
	}

	for _, g := range domain.Granularities {
		if err := w.rollups.Upsert(ctx, d.HolderID, g, g.Boundary(at), aggregate); err != nil {
			return err
		}
	}
	return nil
}
