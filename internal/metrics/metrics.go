// Package metrics wraps the small set of Prometheus series the engine
// process exposes operationally (SPEC_FULL.md section 4.10). It is
// scaffolding around the core matching engine, not part of its
// semantics — the engine calls the recording methods, nothing in
// internal/engine imports prometheus directly.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this process emits, registered against
// its own registry rather than the global default so multiple engines
// in one test binary never collide on metric names.
type Collector struct {
	registry *prometheus.Registry

	OrdersPlaced    *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	Fills           prometheus.Counter
	BookDepth       *prometheus.GaugeVec
}

// New builds a Collector and registers all of its metrics.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bourse",
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders accepted by the engine, by type and side.",
	}, []string{"type", "side"})

	c.OrdersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bourse",
		Subsystem: "orders",
		Name:      "rejected_total",
		Help:      "Orders rejected at admission, by reason.",
	}, []string{"reason"})

	c.OrdersCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bourse",
		Subsystem: "orders",
		Name:      "cancelled_total",
		Help:      "Orders successfully cancelled.",
	})

	c.Fills = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bourse",
		Name:      "fills_total",
		Help:      "Fills recorded by the matching loop.",
	})

	c.BookDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bourse",
		Name:      "book_depth",
		Help:      "Total resting quantity on one side of the book, as of the last quote recompute.",
	}, []string{"side"})

	c.registry.MustRegister(c.OrdersPlaced, c.OrdersRejected, c.OrdersCancelled, c.Fills, c.BookDepth)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
