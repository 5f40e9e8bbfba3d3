// Package metrics provides Prometheus metrics for the deputy server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deputy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deputy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog metrics
	catalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deputy_catalog_entries",
			Help: "Number of directories and files in the catalog",
		},
	)

	catalogBrokenFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deputy_catalog_broken_files",
			Help: "Files that failed to initialize during the last build",
		},
	)

	catalogBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deputy_catalog_build_duration_seconds",
			Help:    "Time to scan the library and build the catalog",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// Extraction metrics
	pageExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deputy_page_extractions_total",
			Help: "Total page extractions",
		},
		[]string{"format", "status"},
	)

	pageExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deputy_page_extraction_duration_seconds",
			Help:    "Page extraction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	pageCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deputy_page_cache_requests_total",
			Help: "Page cache lookups",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCatalogBuild records a finished catalog build.
func RecordCatalogBuild(entries, broken int, duration time.Duration) {
	catalogEntries.Set(float64(entries))
	catalogBrokenFiles.Set(float64(broken))
	catalogBuildDuration.Observe(duration.Seconds())
}

// RecordPageExtraction records one extraction from an archive.
func RecordPageExtraction(format string, duration time.Duration, success bool) {
	pageExtractionDuration.WithLabelValues(format).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	pageExtractionsTotal.WithLabelValues(format, status).Inc()
}

// RecordPageCache records a page cache lookup.
func RecordPageCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	pageCacheRequestsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by the matched chi route
// pattern, so entry IDs do not explode the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, routePattern(r), rw.statusCode, time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
