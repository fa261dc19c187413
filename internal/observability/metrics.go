package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application: the HTTP surface
// plus dispatcher delivery outcomes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	persisted       prometheus.Counter
	pushes          *prometheus.CounterVec
	broadcastSkips  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrouvio_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retrouvio_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrouvio_notifications_persisted_total",
		Help: "Durable notification records written.",
	})
	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrouvio_pushes_total",
		Help: "Live push attempts by result.",
	}, []string{"result"})
	skips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrouvio_broadcast_skips_total",
		Help: "Broadcast targets skipped by reason.",
	}, []string{"reason"})
	registry.MustRegister(requests, duration, persisted, pushes, skips)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		persisted:       persisted,
		pushes:          pushes,
		broadcastSkips:  skips,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// NotificationPersisted counts one durable write.
func (m *Metrics) NotificationPersisted() {
	if m == nil {
		return
	}
	m.persisted.Inc()
}

// PushAttempt counts one live push attempt by result.
func (m *Metrics) PushAttempt(result string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(result).Inc()
}

// BroadcastSkip counts one skipped broadcast target by reason.
func (m *Metrics) BroadcastSkip(reason string) {
	if m == nil {
		return
	}
	m.broadcastSkips.WithLabelValues(reason).Inc()
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
