// Package monitoring wires OpenTelemetry metrics with a Prometheus exporter.
// Initialize once at startup; the middleware and the /metrics handler are
// no-ops until then.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	httpRequestsCounter metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	syncEventsCounter   metric.Int64Counter
	metricsHandler      http.Handler
	initialized         int32
	initOnce            sync.Once
)

// Config holds the metrics setup parameters
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// Initialize sets up the meter provider and instruments. Safe to call more
// than once; only the first call does work.
func Initialize(config Config) error {
	var initErr error
	initOnce.Do(func() {
		initErr = initializeInternal(config)
		if initErr == nil {
			atomic.StoreInt32(&initialized, 1)
		}
	})
	return initErr
}

func initializeInternal(config Config) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "http_request_duration_seconds"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
			},
		)),
	)
	otel.SetMeterProvider(meterProvider)

	meter := otel.Meter("clubhouse")

	httpRequestsCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	syncEventsCounter, err = meter.Int64Counter(
		"membership_sync_events_total",
		metric.WithDescription("Total number of membership synchronization events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create membership_sync_events_total counter: %w", err)
	}

	slog.Info("Initialized OpenTelemetry metrics with Prometheus exporter",
		"service", config.ServiceName)
	return nil
}

// Handler returns the /metrics endpoint handler
func Handler() http.Handler {
	if atomic.LoadInt32(&initialized) == 0 || metricsHandler == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("# Metrics not initialized\n"))
		})
	}
	return metricsHandler
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request count and duration per method/route
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&initialized) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		route := normalizeRoute(r.URL.Path)
		if rw.statusCode == http.StatusNotFound {
			route = "unknown"
		}

		httpRequestsCounter.Add(context.Background(), 1,
			metric.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(rw.statusCode),
			),
		)
		httpRequestDuration.Record(context.Background(), duration,
			metric.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
			),
		)
	})
}

// RecordSyncEvent counts a membership synchronization event (add, remove,
// role change, cascade) and its outcome
func RecordSyncEvent(action, outcome string) {
	if atomic.LoadInt32(&initialized) == 0 {
		return
	}
	syncEventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("clubhouse.sync.action", action),
			attribute.String("clubhouse.sync.outcome", outcome),
		),
	)
}

// normalizeRoute replaces entity IDs in the path with placeholders so route
// cardinality stays bounded
func normalizeRoute(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, "club_"),
			strings.HasPrefix(seg, "stu_"),
			strings.HasPrefix(seg, "mem_"),
			strings.HasPrefix(seg, "inv_"):
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
