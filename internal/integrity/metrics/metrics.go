package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for certificate generation. Constituency
// ids come from a public route and are never used as label values.
type Metrics struct {
	CertificatesGenerated *prometheus.CounterVec
	ConfidenceIndex       *prometheus.HistogramVec
	GenerationDuration    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CertificatesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_certificates_generated_total",
			Help: "Integrity certificates generated, by status",
		}, []string{"status"}),
		ConfidenceIndex: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollguard_certificate_confidence_index",
			Help:    "Final confidence index of generated certificates, by status",
			Buckets: []float64{20, 40, 60, 70, 80, 90, 95, 100},
		}, []string{"status"}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollguard_certificate_generation_duration_seconds",
			Help:    "Time to gather inputs and compute a certificate",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) ObserveCertificate(status string, index int, took time.Duration) {
	if m == nil {
		return
	}
	m.CertificatesGenerated.WithLabelValues(status).Inc()
	m.ConfidenceIndex.WithLabelValues(status).Observe(float64(index))
	m.GenerationDuration.Observe(took.Seconds())
}
