package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// Metrics counts service call attempts by service and result.
type Metrics struct {
	calls *prometheus.CounterVec
}

// NewMetrics registers the service call counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "finput",
			Subsystem: "services",
			Name:      "call_attempts_total",
			Help:      "External model service call attempts by result.",
		}, []string{"service", "result"}),
	}
}

func (m *Metrics) observer(service string) retry.Observer {
	if m == nil {
		return nil
	}
	return func(result string) {
		m.calls.WithLabelValues(service, result).Inc()
	}
}
