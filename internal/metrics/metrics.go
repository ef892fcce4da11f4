// Package metrics exposes Prometheus instrumentation for the trading
// engine and ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector on a private registry, so multiple
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated  *prometheus.CounterVec
	OrdersClosed   *prometheus.CounterVec
	TradesExecuted prometheus.Counter
	MatchLatency   prometheus.Histogram
	BookDepth      *prometheus.GaugeVec
	BreakerState   prometheus.Gauge
	JournalEvents  prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comex_orders_created_total",
			Help: "Orders accepted, by side.",
		}, []string{"side"}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comex_orders_closed_total",
			Help: "Orders reaching a terminal state, by status.",
		}, []string{"status"}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comex_trades_executed_total",
			Help: "Trades executed by the matching engine.",
		}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "comex_match_latency_seconds",
			Help:    "Order creation latency including matching and settlement.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "comex_book_depth",
			Help: "Resting orders per commodity and side.",
		}, []string{"commodity", "side"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "comex_circuit_breaker_active",
			Help: "1 while the circuit breaker is TRIGGERED, 0 otherwise.",
		}),
		JournalEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comex_journal_events_total",
			Help: "Events appended to the journal.",
		}),
	}

	m.registry.MustRegister(
		m.OrdersCreated,
		m.OrdersClosed,
		m.TradesExecuted,
		m.MatchLatency,
		m.BookDepth,
		m.BreakerState,
		m.JournalEvents,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
