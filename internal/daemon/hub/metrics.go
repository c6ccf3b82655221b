package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pulse"

// Metrics are the hub's prometheus collectors.
type Metrics struct {
	Subscribers prometheus.Gauge
	Published   prometheus.Counter
	Delivered   prometheus.Counter
	Dropped     prometheus.Counter
}

// NewMetrics registers the hub collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of currently registered subscribers",
		}),
		Published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "published_total",
			Help:      "Snapshots published to the hub",
		}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "delivered_total",
			Help:      "Snapshots enqueued to a subscriber",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Subscribers dropped because their queue was full",
		}),
	}
}
