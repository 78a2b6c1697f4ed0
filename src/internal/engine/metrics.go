package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are registered on a private registry owned by the engine.
type Metrics struct {
	registry *prometheus.Registry

	calls      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	operations *prometheus.CounterVec
	readTime   *prometheus.HistogramVec
	verifies   prometheus.Histogram
	rollbacks  *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstate",
			Name:      "calls_total",
			Help:      "Engine calls by method and outcome.",
		}, []string{"method", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netstate",
			Name:      "call_duration_seconds",
			Help:      "Engine call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstate",
			Name:      "operations_total",
			Help:      "Change-set operations by kind, action and outcome.",
		}, []string{"kind", "action", "result"}),
		readTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netstate",
			Name:      "read_duration_seconds",
			Help:      "Per entity-kind read latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "backend"}),
		verifies: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netstate",
			Name:      "verify_attempts",
			Help:      "Verification attempts per apply.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 40, 60},
		}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstate",
			Name:      "rollbacks_total",
			Help:      "Rollbacks by mechanism.",
		}, []string{"mechanism"}),
	}
	m.registry.MustRegister(
		m.calls, m.duration, m.operations, m.readTime, m.verifies, m.rollbacks,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the engine metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
