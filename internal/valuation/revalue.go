package valuation

import (
	"context"
	"math"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/storage"
)

// improvementEpsilon nudges an exact half-millesimal delta upward before
// rounding: +0.0005 rounds to 0.001 and -0.0005 rounds to 0. A delta of
// exactly zero stays zero.
const improvementEpsilon = 1e-6

// RoundImprovement computes the per-share price delta rounded to 3 decimal
// places.
func RoundImprovement(oldPrice, newPrice float64) float64 {
	return math.Round((newPrice-oldPrice+improvementEpsilon)*1000) / 1000
}

// Revaluator streams per-holder deltas for a symbol's price change.
type Revaluator struct {
	positions storage.PositionStore
}

// NewRevaluator creates a Revaluator over the given position store.
func NewRevaluator(positions storage.PositionStore) *Revaluator {
	return &Revaluator{positions: positions}
}

// StreamDeltas computes the improvement once and emits one delta per active
// holder of the symbol. Holders are streamed off the store's cursor, so a
// widely-held symbol never materializes its full holder list. A non-nil
// error from emit aborts the stream.
func (r *Revaluator) StreamDeltas(ctx context.Context, symbolID int64, oldPrice, newPrice float64, emit func(domain.HolderDelta) error) error {
	improvement := RoundImprovement(oldPrice, newPrice)

	return r.positions.StreamActiveBySymbol(ctx, symbolID, func(p *domain.Position) error {
		return emit(domain.HolderDelta{
			HolderID:    p.HolderID,
			GroupID:     p.GroupID,
			SymbolID:    symbolID,
			Improvement: improvement,
		})
	})
}
