// Package observability exposes prometheus metrics and OpenTelemetry
// tracing for the query service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const maxPathLabel = 50

// Metrics holds the service collectors. Use NewMetrics; collectors are
// registered once per process.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	compileTotal   *prometheus.CounterVec
	searchTotal    *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec

	rateLimitHits  *prometheus.CounterVec
	schemaReloads  *prometheus.CounterVec
	schemaEntities prometheus.Gauge
	uptime         prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide metrics instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "facetql_http_requests_total",
				Help: "HTTP requests by method, route and status class",
			}, []string{"method", "path", "status"}),
			httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "facetql_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "path"}),
			compileTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "facetql_compile_total",
				Help: "Request compilations by entity and result category",
			}, []string{"entity", "result"}),
			searchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "facetql_backend_requests_total",
				Help: "Backend calls by entity, backend and result",
			}, []string{"entity", "backend", "result"}),
			searchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "facetql_backend_request_duration_seconds",
				Help:    "Backend call latency",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			}, []string{"entity", "backend"}),
			rateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "facetql_rate_limit_hits_total",
				Help: "Requests rejected by a rate limiter",
			}, []string{"limiter"}),
			schemaReloads: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "facetql_schema_reloads_total",
				Help: "Entity schema reloads by source and result",
			}, []string{"source", "result"}),
			schemaEntities: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "facetql_schema_entities",
				Help: "Entities in the current schema snapshot",
			}),
			uptime: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "facetql_uptime_seconds",
				Help: "Seconds since the server started",
			}),
		}
	})
	return metricsInstance
}

// ObserveCompile records the outcome of one request compilation.
func (m *Metrics) ObserveCompile(entity string, err error) {
	m.compileTotal.WithLabelValues(entity, resultLabel(err)).Inc()
}

// ObserveSearch records one backend call.
func (m *Metrics) ObserveSearch(entity, backend string, d time.Duration, err error) {
	m.searchTotal.WithLabelValues(entity, backend, resultLabel(err)).Inc()
	m.searchDuration.WithLabelValues(entity, backend).Observe(d.Seconds())
}

// RecordRateLimitHit counts a rejected request.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.rateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordSchemaReload counts a schema reload and, on success, the entity
// count of the new snapshot.
func (m *Metrics) RecordSchemaReload(source string, entities int, err error) {
	if err != nil {
		m.schemaReloads.WithLabelValues(source, "error").Inc()
		return
	}
	m.schemaReloads.WithLabelValues(source, "ok").Inc()
	m.schemaEntities.Set(float64(entities))
}

// UpdateUptime sets the uptime gauge from start.
func (m *Metrics) UpdateUptime(start time.Time) {
	m.uptime.Set(time.Since(start).Seconds())
}

// Handler serves the default prometheus registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records request counts and latency per route.
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			switch {
			case errors.As(err, &fe):
				status = fe.Code
			default:
				if qe, ok := queryerr.As(err); ok {
					status = qe.Status()
				} else {
					status = fiber.StatusInternalServerError
				}
			}
		}

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		path = normalizePath(path)
		m.httpRequestsTotal.WithLabelValues(c.Method(), path, statusClass(status)).Inc()
		m.httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if qe, ok := queryerr.As(err); ok {
		return string(qe.Category)
	}
	return "error"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}

// normalizePath bounds label cardinality for unmatched or very long paths.
func normalizePath(path string) string {
	if len(path) > maxPathLabel {
		return "long_path"
	}
	return path
}

// MetricsServer serves metrics on a dedicated port.
type MetricsServer struct {
	port   int
	path   string
	server *http.Server
}

// NewMetricsServer returns an unstarted metrics server.
func NewMetricsServer(port int, path string) *MetricsServer {
	return &MetricsServer{port: port, path: path}
}

// Start serves until Shutdown is called.
func (ms *MetricsServer) Start() error {
	mux := http.NewServeMux()
	mux.Handle(ms.path, promhttp.Handler())
	ms.server = &http.Server{
		Addr:              ":" + strconv.Itoa(ms.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", ms.port).Str("path", ms.path).Msg("Starting metrics server")
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server. It is safe to call before Start.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	if ms.server == nil {
		return nil
	}
	return ms.server.Shutdown(ctx)
}
