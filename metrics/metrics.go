// Package metrics holds the Prometheus collectors of the service.
//
// All collectors are registered on a private registry so tests can build as
// many instances as they like. Every helper is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cityreport"

// Sync push outcomes
const (
	SyncSuccess = "success"
	SyncFailed  = "failed"
	SyncDropped = "dropped"
	SyncQueued  = "queued"
)

// Metrics holds Prometheus metrics for the service
type Metrics struct {
	Registry *prometheus.Registry

	SyncPushes        *prometheus.CounterVec
	OutboxDepth       prometheus.Gauge
	AuditEvents       *prometheus.CounterVec
	AuditSinkFailures *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
	SessionsExpired   prometheus.Counter
	ReportsByStatus   *prometheus.GaugeVec
	ActiveAlerts      prometheus.Gauge
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New creates a new metrics instance on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SyncPushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "pushes_total",
				Help:      "Report pushes to the remote service by outcome",
			},
			[]string{"result"},
		),
		OutboxDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "outbox_depth",
				Help:      "Reports waiting in the durable outbox",
			},
		),
		AuditEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Security events emitted by kind",
			},
			[]string{"kind"},
		),
		AuditSinkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "sink_failures_total",
				Help:      "Failed deliveries per audit sink",
			},
			[]string{"sink"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "login_attempts_total",
				Help:      "Sign-in attempts by outcome",
			},
			[]string{"result"},
		),
		SessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "sessions_expired_total",
				Help:      "Sessions destroyed by absolute or inactivity expiry",
			},
		),
		ReportsByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reports",
				Name:      "count",
				Help:      "Stored reports by status",
			},
			[]string{"status"},
		),
		ActiveAlerts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "active",
				Help:      "Alerts currently shown to citizens",
			},
		),
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Sync counts one push outcome.
func (m *Metrics) Sync(result string) {
	if m == nil {
		return
	}
	m.SyncPushes.WithLabelValues(result).Inc()
}

// Outbox records the outbox depth.
func (m *Metrics) Outbox(depth int) {
	if m == nil {
		return
	}
	m.OutboxDepth.Set(float64(depth))
}

// Audit counts one emitted security event.
func (m *Metrics) Audit(kind string) {
	if m == nil {
		return
	}
	m.AuditEvents.WithLabelValues(kind).Inc()
}

// AuditFailure counts one failed sink delivery.
func (m *Metrics) AuditFailure(sink string) {
	if m == nil {
		return
	}
	m.AuditSinkFailures.WithLabelValues(sink).Inc()
}

// Login counts one sign-in attempt.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// SessionExpired counts one expired session.
func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// Reports sets the per-status report gauges.
func (m *Metrics) Reports(counts map[string]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.ReportsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// Alerts sets the active alert gauge.
func (m *Metrics) Alerts(active int) {
	if m == nil {
		return
	}
	m.ActiveAlerts.Set(float64(active))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
