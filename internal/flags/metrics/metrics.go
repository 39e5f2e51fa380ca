package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for flag handling.
type Metrics struct {
	FlagsRecorded *prometheus.CounterVec
	FlagsResolved *prometheus.CounterVec
	ResolveNoops  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		FlagsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_flags_recorded_total",
			Help: "Flags stored, by tier",
		}, []string{"tier"}),
		FlagsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_flags_resolved_total",
			Help: "Flags resolved by an authority, by tier",
		}, []string{"tier"}),
		ResolveNoops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollguard_flag_resolve_noops_total",
			Help: "Resolve calls on flags that were already resolved",
		}),
	}
}

func (m *Metrics) IncrementRecorded(tier string) {
	if m == nil {
		return
	}
	m.FlagsRecorded.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementResolved(tier string) {
	if m == nil {
		return
	}
	m.FlagsResolved.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementResolveNoop() {
	if m == nil {
		return
	}
	m.ResolveNoops.Inc()
}
