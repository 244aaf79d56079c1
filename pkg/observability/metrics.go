package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal  *prometheus.CounterVec
	GuardRejectionsTotal *prometheus.CounterVec

	// Admin override metrics
	ImpersonationsTotal *prometheus.CounterVec
	BansTotal           *prometheus.CounterVec

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter
	BanCacheHitsTotal    prometheus.Counter
	BanCacheMissesTotal  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorpasses_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doorpasses_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorpasses_authz_decisions_total",
				Help: "Permission evaluator decisions by guard and outcome",
			},
			[]string{"guard", "allowed"},
		),
		GuardRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorpasses_guard_rejections_total",
				Help: "Requests rejected by server guards, by reason",
			},
			[]string{"reason"},
		),
		ImpersonationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorpasses_impersonations_total",
				Help: "Impersonation state transitions",
			},
			[]string{"transition"},
		),
		BansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorpasses_bans_total",
				Help: "User ban operations by kind",
			},
			[]string{"kind"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "doorpasses_sessions_active",
				Help: "Currently active sessions",
			},
		),
		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorpasses_sessions_created_total",
				Help: "Sessions created since process start",
			},
		),
		BanCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorpasses_ban_cache_hits_total",
				Help: "Ban-status cache hits",
			},
		),
		BanCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "doorpasses_ban_cache_misses_total",
				Help: "Ban-status cache misses",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.GuardRejectionsTotal,
		m.ImpersonationsTotal,
		m.BansTotal,
		m.SessionsActive,
		m.SessionsCreatedTotal,
		m.BanCacheHitsTotal,
		m.BanCacheMissesTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuthzDecision records a permission evaluator decision.
func (m *Metrics) RecordAuthzDecision(guard string, allowed bool) {
	m.AuthzDecisionsTotal.WithLabelValues(guard, strconv.FormatBool(allowed)).Inc()
}

// InstrumentHTTP wraps a handler with request count and duration metrics.
// Paths are recorded per mux route template by the caller.
func (m *Metrics) InstrumentHTTP(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
