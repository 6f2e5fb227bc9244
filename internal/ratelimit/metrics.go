package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Failures prometheus.Counter
	Locked   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_login_failures_total",
			Help: "Failed password logins counted toward lockout",
		}),
		Locked: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_login_locked_total",
			Help: "Login attempts refused because the account and IP were locked",
		}),
	}
}

func (m *Metrics) incFailure() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) incLocked() {
	if m != nil {
		m.Locked.Inc()
	}
}
