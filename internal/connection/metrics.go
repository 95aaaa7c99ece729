package connection

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts requests made to Holvi.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holvi",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Requests sent to the Holvi API by method and status code.",
		}, []string{"method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "holvi",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Holvi API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}
