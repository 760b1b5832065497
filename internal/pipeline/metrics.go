package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts company outcomes and times whole companies.
type Metrics struct {
	Companies *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Companies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "pipeline",
			Name:      "companies_total",
			Help:      "Companies processed by outcome.",
		}, []string{"outcome"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Isolated company failures by phase.",
		}, []string{"phase"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finput",
			Subsystem: "pipeline",
			Name:      "company_duration_seconds",
			Help:      "Wall time to classify and materialize one company.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) outcome(o Outcome) {
	if m != nil {
		m.Companies.WithLabelValues(string(o)).Inc()
	}
}

func (m *Metrics) failure(p Phase) {
	if m != nil {
		m.Failures.WithLabelValues(string(p)).Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.Duration.Observe(seconds)
	}
}
