package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts router outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	ops       *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// NewMetrics registers the storage counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by collection, op and serving backend.",
		}, []string{"collection", "op", "provenance"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "storage",
			Name:      "fallbacks_total",
			Help:      "Primary failures that sent an operation to the local fallback.",
		}, []string{"collection", "reason"}),
	}
	reg.MustRegister(m.ops, m.fallbacks)
	return m
}

func (m *Metrics) observe(collection string, op Op, p Provenance) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(collection, string(op), string(p)).Inc()
}

func (m *Metrics) fallback(collection string, p Provenance) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(collection, string(p)).Inc()
}
