package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gate decisions by transport and outcome.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics registers the gate metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_auth_decisions_total",
			Help: "Authentication decisions by transport and outcome",
		}, []string{"route", "outcome"}),
	}
}

func (m *Metrics) record(route string, reason Reason) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(route, string(reason)).Inc()
}
