package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the risk engine.
type Metrics struct {
	RequestsScored *prometheus.CounterVec
	RequestScore   prometheus.Histogram
	FlagsRaised    *prometheus.CounterVec
	AuditEntries   prometheus.Counter
	ScoringLatency prometheus.Histogram
}

// New creates and registers risk engine metrics.
func New() *Metrics {
	return &Metrics{
		RequestsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_requests_scored_total",
			Help: "Voter requests scored, by resulting tier",
		}, []string{"tier"}),
		RequestScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollguard_request_risk_score",
			Help:    "Distribution of final request risk scores",
			Buckets: []float64{0, 20, 40, 50, 70, 80, 90, 100},
		}),
		FlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_flags_raised_total",
			Help: "Flags raised by the risk engine, by rule",
		}, []string{"rule_id"}),
		AuditEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollguard_form17a_entries_scored_total",
			Help: "Form 17A entries run through the audit scorer",
		}),
		ScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollguard_request_scoring_duration_ms",
			Help:    "Time to score a single voter request in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveRequestScored(tier string, score int, durationMs float64) {
	if m == nil {
		return
	}
	m.RequestsScored.WithLabelValues(tier).Inc()
	m.RequestScore.Observe(float64(score))
	m.ScoringLatency.Observe(durationMs)
}

func (m *Metrics) IncrementFlagRaised(ruleID string) {
	if m == nil {
		return
	}
	m.FlagsRaised.WithLabelValues(ruleID).Inc()
}

func (m *Metrics) AddAuditEntries(n int) {
	if m == nil {
		return
	}
	m.AuditEntries.Add(float64(n))
}
