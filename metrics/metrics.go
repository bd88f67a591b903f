// Package metrics exposes Prometheus collectors for the HTTP layer and the
// attendance ledger. Each Metrics owns its registry so tests can build as
// many handlers as they like without duplicate registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/gym-ledger/gym"
)

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	attendanceMarks    *prometheus.CounterVec
	sessionAdjustments *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gym",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		attendanceMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gym",
			Name:      "attendance_marks_total",
			Help:      "Attendance mark attempts by operation, status and outcome.",
		}, []string{"operation", "status", "outcome"}),
		sessionAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gym",
			Name:      "session_adjustments_total",
			Help:      "Session balance changes by direction.",
		}, []string{"direction"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.attendanceMarks,
		m.sessionAdjustments,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled by the matched chi route, so
// /api/attendance/42 and /api/attendance/43 share one series.
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
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// ObserveMark counts one mark attempt. Failures are labelled by error kind.
func (m *Metrics) ObserveMark(operation, status string, err error) {
	outcome := "success"
	if err != nil {
		outcome = gym.Kind(err)
	}
	if _, perr := gym.ParseStatus(status); perr != nil {
		status = "invalid"
	}
	m.attendanceMarks.WithLabelValues(operation, status, outcome).Inc()
}

// ObserveAdjustment counts a balance change; nil is a no-op.
func (m *Metrics) ObserveAdjustment(adj *gym.SessionAdjustment) {
	if adj == nil || adj.Delta == 0 {
		return
	}
	direction := "restore"
	if adj.Delta < 0 {
		direction = "deduct"
	}
	m.sessionAdjustments.WithLabelValues(direction).Add(float64(abs(adj.Delta)))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
