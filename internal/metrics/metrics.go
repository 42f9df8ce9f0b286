// Package metrics collects prometheus metrics for the DLOB service:
// per-lane book sizes, promotion counts, and ingest latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds every metric this service exposes. It is registered
// once at startup and handed to the components that record against it.
type Collectors struct {
	LaneSize        *prometheus.GaugeVec
	OrdersInserted  prometheus.Counter
	PromotionsTotal prometheus.Counter
	IngestLatency   prometheus.Histogram
	SnapshotLatency prometheus.Histogram
	RebuildTotal    prometheus.Counter
}

// New creates and registers a Collectors against registry.
func New(registry prometheus.Registerer) *Collectors {
	c := &Collectors{
		LaneSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dlob_lane_size",
			Help: "Number of live orders in a given (market_type, market_index, lane).",
		}, []string{"market_type", "market_index", "lane"}),
		OrdersInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dlob_orders_inserted_total",
			Help: "Total number of orders successfully inserted into the book.",
		}),
		PromotionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dlob_orders_promoted_total",
			Help: "Total number of orders promoted from taking to resting limit.",
		}),
		IngestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dlob_ingest_latency_seconds",
			Help:    "Time to decode and apply one ingest message.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		SnapshotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dlob_snapshot_latency_seconds",
			Help:    "Time to fetch and decode one bulk program-account snapshot.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RebuildTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dlob_rebuild_total",
			Help: "Total number of wholesale book rebuilds.",
		}),
	}

	registry.MustRegister(
		c.LaneSize,
		c.OrdersInserted,
		c.PromotionsTotal,
		c.IngestLatency,
		c.SnapshotLatency,
		c.RebuildTotal,
	)

	return c
}

// OrderInserted and OrdersPromoted satisfy internal/dlob.MetricsSink, so
// a Collectors can be passed directly to DLOB.WithMetrics.

// OrderInserted records one successful order insertion.
func (c *Collectors) OrderInserted() {
	c.OrdersInserted.Inc()
}

// OrdersPromoted records n orders promoted from taking to resting limit
// in a single UpdateRestingLimitOrders call.
func (c *Collectors) OrdersPromoted(n int) {
	c.PromotionsTotal.Add(float64(n))
}

// ObserveIngestLatency records the time between receiving an ingest
// message and applying its decoded result to the book.
func (c *Collectors) ObserveIngestLatency(d time.Duration) {
	c.IngestLatency.Observe(d.Seconds())
}

// ObserveSnapshotLatency records the time to fetch and decode one bulk
// program-account snapshot.
func (c *Collectors) ObserveSnapshotLatency(d time.Duration) {
	c.SnapshotLatency.Observe(d.Seconds())
}

// RebuildPerformed records one wholesale book rebuild.
func (c *Collectors) RebuildPerformed() {
	c.RebuildTotal.Inc()
}
