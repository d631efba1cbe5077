// Package metrics holds the engine's Prometheus collectors. Each Metrics
// owns its registry so tests and multiple engines never collide on the
// default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersAccepted *prometheus.CounterVec // by type: limit, market
	OrdersRejected *prometheus.CounterVec // by type: limit, market, cancel
	Cancels        prometheus.Counter
	Fills          prometheus.Counter
	FilledVolume   prometheus.Counter
	Unfilled       prometheus.Counter

	DepthLevels   *prometheus.GaugeVec // by side
	RestingOrders *prometheus.GaugeVec
	SideVolume    *prometheus.GaugeVec
	Spread        prometheus.Gauge

	CommandLatency *prometheus.HistogramVec // by command

	ReportsPublished prometheus.Counter
	PublishFailures  prometheus.Counter
	ReportsDropped   prometheus.Counter
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_accepted_total",
			Help:      "Orders accepted by the engine.",
		}, []string{"type"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Requests rejected before reaching the book.",
		}, []string{"type"}),
		Cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Resting orders cancelled.",
		}),
		Fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maker_fills_total",
			Help:      "Resting orders touched by a match, fully or partially.",
		}),
		FilledVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_volume_total",
			Help:      "Quantity matched.",
		}),
		Unfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_unfilled_volume_total",
			Help:      "Market order quantity dropped for lack of liquidity.",
		}),
		DepthLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_levels",
			Help:      "Price levels per side.",
		}, []string{"side"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_orders",
			Help:      "Resting orders per side.",
		}, []string{"side"}),
		SideVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_volume",
			Help:      "Resting quantity per side.",
		}, []string{"side"}),
		Spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_spread",
			Help:      "Best ask minus best bid, 0 when either side is empty.",
		}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent applying a command inside the engine loop.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"command"}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Execution reports acknowledged by the broker.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_publish_failures_total",
			Help:      "Failed publish attempts.",
		}),
		ReportsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_dead_total",
			Help:      "Reports parked after exhausting retries.",
		}),
	}

	m.registry.MustRegister(
		m.OrdersAccepted, m.OrdersRejected, m.Cancels, m.Fills, m.FilledVolume, m.Unfilled,
		m.DepthLevels, m.RestingOrders, m.SideVolume, m.Spread,
		m.CommandLatency,
		m.ReportsPublished, m.PublishFailures, m.ReportsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
