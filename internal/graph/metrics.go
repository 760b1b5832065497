package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks materialization outcomes. Evictions are counted per
// compacted evidence item to show how often the capacity is under pressure.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Evicted  prometheus.Counter
}

// NewMetrics registers the graph counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "graph",
			Name:      "edge_outcomes_total",
			Help:      "Edge materializations by relation and outcome.",
		}, []string{"relation", "outcome"}),
		Evicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "graph",
			Name:      "evidence_compacted_total",
			Help:      "Evidence items compacted into edge rollups.",
		}),
	}
}
