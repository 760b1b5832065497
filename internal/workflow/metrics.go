package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
)

// Metrics counts stage outcomes and final results.
type Metrics struct {
	Stages  *prometheus.CounterVec
	Results *prometheus.CounterVec
}

// NewMetrics registers the workflow counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "workflow",
			Name:      "stage_outcomes_total",
			Help:      "Fallback chain stage outcomes by stage and status.",
		}, []string{"stage", "status"}),
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "workflow",
			Name:      "results_total",
			Help:      "Classification results by status, method and band.",
		}, []string{"status", "method", "band"}),
	}
}

func (m *Metrics) observe(r *classifications.Result) {
	if m == nil {
		return
	}
	for _, o := range r.Trace {
		m.Stages.WithLabelValues(string(o.Stage), string(o.Status)).Inc()
	}
	m.Results.WithLabelValues(string(r.Status), string(r.Method), string(r.Band)).Inc()
}
