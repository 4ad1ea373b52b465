package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/observability"
	"valuation-pipeline/internal/storage"
	"valuation-pipeline/internal/valuation"
)

// DefaultOpTimeout bounds the storage work for one drained event so a slow
// query cannot hold a governor slot indefinitely.
const DefaultOpTimeout = 10 * time.Second

// Coordinator owns the shared pipeline state (throttle cache, queue,
// governor, pending rollup batch) and drives the worker loop. Feed
// connectors hand every parsed bar to HandleBar.
type Coordinator struct {
	throttle *ThrottleCache
	queue    *EventQueue
	governor *Governor

	pricer     *valuation.PriceUpdater
	revaluator *valuation.Revaluator
	writer     *valuation.RollupWriter
	archive    storage.BarArchive // optional

	opTimeout time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	wg sync.WaitGroup
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Throttle   *ThrottleCache
	Queue      *EventQueue
	Governor   *Governor
	Pricer     *valuation.PriceUpdater
	Revaluator *valuation.Revaluator
	Writer     *valuation.RollupWriter
	// Archive receives every processed raw bar. Optional.
	Archive storage.BarArchive
	// OpTimeout bounds the storage work per drained event. Defaults to
	// DefaultOpTimeout.
	OpTimeout time.Duration
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	opTimeout := opts.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		throttle:   opts.Throttle,
		queue:      opts.Queue,
		governor:   opts.Governor,
		pricer:     opts.Pricer,
		revaluator: opts.Revaluator,
		writer:     opts.Writer,
		archive:    opts.Archive,
		opTimeout:  opTimeout,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}
}

// HandleBar is the entry point for one parsed bar update. Throttled bars are
// dropped. Accepted bars are queued; if the governor grants a slot a worker
// goroutine drains the queue, otherwise the bar waits for a later trigger.
func (c *Coordinator) HandleBar(ctx context.Context, bar domain.BarUpdate) {
	if !c.throttle.ShouldProcess(bar.Ticker, c.now()) {
		if c.metrics != nil {
			c.metrics.BarsThrottled.Inc()
		}
		return
	}

	c.queue.Push(bar)
	if c.metrics != nil {
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))
	}

	if !c.governor.TryAcquire() {
		if c.metrics != nil {
			c.metrics.PoolDenials.Inc()
		}
		return
	}

	c.wg.Add(1)
	go c.drain(ctx)
}

// Wait blocks until all in-flight workers finish. Shutdown and test helper.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Shutdown waits for workers and flushes any still-pending batch.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.wg.Wait()
	c.writer.Flush(ctx)
}

// drain is the worker loop: flush the pending batch left by earlier batches
// so deltas are not reordered, then pop events until the queue empties or a
// storage error aborts the pass. The governor slot is released on every exit
// path.
func (c *Coordinator) drain(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.governor.Release()
		if c.metrics != nil {
			c.metrics.WorkersActive.Set(float64(c.governor.Active()))
		}
	}()
	if c.metrics != nil {
		c.metrics.WorkersActive.Set(float64(c.governor.Active()))
	}

	c.writer.Flush(ctx)
	if c.metrics != nil {
		c.metrics.BatchFlushes.Inc()
	}

	for {
		bar, ok := c.queue.Pop()
		if c.metrics != nil {
			c.metrics.QueueDepth.Set(float64(c.queue.Len()))
		}
		if !ok {
			return
		}

		if err := c.process(ctx, bar); err != nil {
			c.logger.Error("aborting drain on storage error",
				zap.String("ticker", bar.Ticker),
				zap.Error(err),
			)
			if c.metrics != nil {
				c.metrics.DrainAborts.Inc()
			}
			return
		}
	}
}

// process runs one bar through price update, revaluation and the rollup
// writer under the per-operation deadline. The throttle timestamp is
// recorded only after the bar succeeds (or is skipped as unknown), so a
// failed bar is retried by the symbol's next update.
func (c *Coordinator) process(parent context.Context, bar domain.BarUpdate) error {
	ctx, cancel := context.WithTimeout(parent, c.opTimeout)
	defer cancel()

	started := time.Now()
	now := c.now()

	update, err := c.pricer.ApplyBar(ctx, bar, now)
	if err != nil {
		return err
	}
	if update == nil {
		// Ticker unknown to the catalog. Throttle it anyway so the
		// catalog is not hammered by every bar for this symbol.
		c.throttle.Mark(bar.Ticker, now)
		if c.metrics != nil {
			c.metrics.UnknownSymbols.Inc()
		}
		return nil
	}
	if c.metrics != nil {
		c.metrics.PriceUpdates.Inc()
		if update.SessionRolled {
			c.metrics.SessionRollovers.Inc()
		}
	}

	if c.archive != nil {
		// Archive failures never block valuation: the archive is a
		// best-effort raw history.
		if err := c.archive.Insert(ctx, &bar); err != nil {
			c.logger.Warn("bar archive insert failed",
				zap.String("ticker", bar.Ticker),
				zap.Error(err),
			)
		}
	}

	if !update.Created {
		err = c.revaluator.StreamDeltas(ctx, update.SymbolID, update.OldPrice, update.NewPrice, func(d domain.HolderDelta) error {
			c.writer.Append(ctx, d)
			if c.metrics != nil {
				c.metrics.DeltasApplied.Inc()
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	c.throttle.Mark(bar.Ticker, now)
	if c.metrics != nil {
		c.metrics.BarProcessingLatency.Observe(time.Since(started).Seconds())
	}
	return nil
}
