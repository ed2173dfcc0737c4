package annotations

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics turns annotation events into Prometheus series.
type Metrics struct {
	events    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	nodes     prometheus.Gauge
	benefit   prometheus.Gauge
	usedSpace prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpqopt",
			Name:      "events_total",
			Help:      "Optimizer annotation events by name.",
		}, []string{"event"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rpqopt",
			Name:      "event_duration_seconds",
			Help:      "Latency of optimizer passes.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"event"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rpqopt",
			Name:      "dag_nodes",
			Help:      "Nodes in the AND-OR DAG after the last plan.",
		}),
		benefit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rpqopt",
			Name:      "matview_benefit",
			Help:      "Workload cost reduction of the last view selection.",
		}),
		usedSpace: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rpqopt",
			Name:      "matview_space_used",
			Help:      "Storage consumed by the last view selection.",
		}),
	}

	for _, c := range []prometheus.Collector{m.events, m.latency, m.nodes, m.benefit, m.usedSpace} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handle implements Handler
func (m *Metrics) Handle(event Event) {
	m.events.WithLabelValues(event.Name).Inc()
	m.latency.WithLabelValues(event.Name).Observe(event.Latency.Seconds())

	switch event.Name {
	case PlanComplete:
		m.nodes.Set(float64(intData(event.Data, "nodes")))
	case MatViewSelected:
		m.benefit.Set(floatData(event.Data, "benefit"))
		m.usedSpace.Set(float64(uintData(event.Data, "space.used")))
	}
}
