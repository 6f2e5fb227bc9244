package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDelivered = "delivered"
	outcomeOffline   = "offline"
	outcomeFailed    = "failed"
)

// Metrics holds Prometheus metrics for the connection registry.
type Metrics struct {
	Connections prometheus.Gauge
	Deliveries  *prometheus.CounterVec
	Superseded  prometheus.Counter
}

// NewMetrics registers registry metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinelog_realtime_connections",
			Help: "Users with a live notification connection",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_realtime_deliveries_total",
			Help: "Notification delivery attempts by outcome",
		}, []string{"outcome"}),
		Superseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_realtime_superseded_total",
			Help: "Connections closed because the same user connected again",
		}),
	}
}

func (m *Metrics) setConnections(n int) {
	if m != nil {
		m.Connections.Set(float64(n))
	}
}

func (m *Metrics) incDelivery(outcome string) {
	if m != nil {
		m.Deliveries.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) incSuperseded() {
	if m != nil {
		m.Superseded.Inc()
	}
}
