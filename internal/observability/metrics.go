// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Feed metrics
	FramesReceived    *prometheus.CounterVec
	BarsParsed        *prometheus.CounterVec
	FeedReconnects    *prometheus.CounterVec
	HandshakeFailures *prometheus.CounterVec

	// Pipeline metrics
	BarsThrottled  prometheus.Counter
	QueueDepth     prometheus.Gauge
	WorkersActive  prometheus.Gauge
	PoolDenials    prometheus.Counter
	UnknownSymbols prometheus.Counter
	DrainAborts    prometheus.Counter

	// Valuation metrics
	PriceUpdates     prometheus.Counter
	SessionRollovers prometheus.Counter
	DeltasApplied    prometheus.Counter
	BatchFlushes     prometheus.Counter

	// Latency metrics
	BarProcessingLatency prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "valuation_pipeline"
	}

	return &Metrics{
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_received_total",
			Help:      "Total number of frames received from the market-data feed",
		}, []string{"asset_class"}),
		BarsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bars_parsed_total",
			Help:      "Total number of bar updates parsed from feed frames",
		}, []string{"asset_class"}),
		FeedReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}, []string{"asset_class"}),
		HandshakeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "handshake_failures_total",
			Help:      "Total number of fatal feed handshake failures",
		}, []string{"asset_class"}),

		BarsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "bars_throttled_total",
			Help:      "Total number of bars suppressed by the per-symbol cool-down",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Number of bar events waiting in the backpressure queue",
		}),
		WorkersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "workers_active",
			Help:      "Number of workers currently holding a storage connection",
		}),
		PoolDenials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "pool_denials_total",
			Help:      "Total number of worker requests denied by the connection governor",
		}),
		UnknownSymbols: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "unknown_symbols_total",
			Help:      "Total number of bars skipped because the ticker is not in the catalog",
		}),
		DrainAborts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "drain_aborts_total",
			Help:      "Total number of worker drains aborted by a storage error",
		}),

		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "price_updates_total",
			Help:      "Total number of canonical price updates applied",
		}),
		SessionRollovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "session_rollovers_total",
			Help:      "Total number of trading-session rollovers",
		}),
		DeltasApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "deltas_applied_total",
			Help:      "Total number of holder deltas appended to the pending batch",
		}),
		BatchFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "batch_flushes_total",
			Help:      "Total number of pending-batch flushes",
		}),

		BarProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "bar_processing_seconds",
			Help:      "Time to process one bar end to end inside a worker",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
