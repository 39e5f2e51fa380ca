package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-level HTTP and event stream metrics.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPLatency      *prometheus.HistogramVec
	WebsocketClients prometheus.Gauge
	EventsDropped    *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollguard_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rollguard_websocket_clients",
			Help: "Connected authority dashboard clients",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_events_dropped_total",
			Help: "Events a sink could not deliver",
		}, []string{"sink"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollguard_events_published_total",
			Help: "Events delivered to a sink",
		}, []string{"sink"}),
	}
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.WebsocketClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.WebsocketClients.Dec()
}

func (m *Metrics) IncrementDropped(sink string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementPublished(sink string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(sink).Inc()
}

// LatencyMiddleware records request counts and latency keyed by the chi
// route pattern, so path parameters do not explode label cardinality.
func LatencyMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
