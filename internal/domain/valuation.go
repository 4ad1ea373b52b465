package domain

import "time"

// HolderDelta is one pending valuation change for a holder, produced by
// revaluing a symbol after a price move. Quantity is intentionally absent:
// the writer combines the improvement with the stored position quantity.
type HolderDelta struct {
	HolderID    int64
	GroupID     int64
	SymbolID    int64
	Improvement float64 // price delta rounded to 3 decimal places
}

// PositionValueEntry is one row of the per-(holder, symbol) value log.
type PositionValueEntry struct {
	ID         int64
	HolderID   int64
	SymbolID   int64
	Value      float64
	RecordedAt time.Time
}

// AggregateValueEntry is one row of the per-holder all-holdings value log.
type AggregateValueEntry struct {
	ID         int64
	HolderID   int64
	Value      float64
	RecordedAt time.Time
}

// Granularity is a fixed rollup bucket width.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Granularities lists every rollup granularity in ascending bucket width.
var Granularities = []Granularity{GranularityMinute, GranularityHour, GranularityDay}

// Duration returns the bucket width.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Boundary returns the end of the bucket containing t: the smallest multiple
// of the bucket width that is >= t. A timestamp exactly on a boundary maps to
// itself.
func (g Granularity) Boundary(t time.Time) time.Time {
	d := g.Duration()
	truncated := t.Truncate(d)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(d)
}

// RollupPoint is the latest aggregate value for a holder as of the end of one
// open bucket. At most one row exists per (holder, granularity, boundary).
type RollupPoint struct {
	HolderID    int64
	Granularity Granularity
	Boundary    time.Time
	Value       float64
}
