// Package metrics exposes Prometheus collectors for the engine, sessions, notifications and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"streakbuddy/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streakbuddy"

// Registry implements service.Metrics on a dedicated Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	operationTime *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	sessions      prometheus.Gauge
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ service.Metrics = (*Registry)(nil)

// New creates a registry with the process and Go runtime collectors registered.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Habit engine operations by outcome.",
		}, []string{"op", "result"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of habit engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12),
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "conflict_retries_total",
			Help:      "Optimistic concurrency retries.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Live sessions currently open.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "notifications_total",
			Help:      "Push notifications by kind and outcome.",
		}, []string{"kind", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		r.operations,
		r.operationTime,
		r.retries,
		r.sessions,
		r.notifications,
		r.httpRequests,
		r.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return r
}

// Registerer lets infrastructure add its own collectors, such as database pool stats.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// NewMetrics provides the registry as the domain Metrics contract.
func NewMetrics(r *Registry) service.Metrics {
	return r
}

func (r *Registry) ObserveOperation(op, result string, elapsed time.Duration) {
	r.operations.WithLabelValues(op, result).Inc()
	r.operationTime.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveRetry(op string) {
	r.retries.WithLabelValues(op).Inc()
}

func (r *Registry) SessionOpened() {
	r.sessions.Inc()
}

func (r *Registry) SessionClosed() {
	r.sessions.Dec()
}

func (r *Registry) ObserveNotification(kind, result string) {
	r.notifications.WithLabelValues(kind, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware records request counts and latency by route template.
func (r *Registry) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		r.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())

		return err
	}
}
