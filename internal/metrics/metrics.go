// Package metrics provides Prometheus metrics for the wisp-explorer
// gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wisp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	blobCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisp_blob_cache_lookups_total",
			Help: "Blob cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	blobBytesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisp_blob_bytes_fetched_total",
			Help: "Total bytes fetched from hosting endpoints",
		},
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisp_identity_resolutions_total",
			Help: "Identity resolutions by result",
		},
		[]string{"result"},
	)

	manifestFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wisp_manifest_fetch_duration_seconds",
			Help:    "Time to fetch and merge a site manifest",
			Buckets: prometheus.DefBuckets,
		},
	)

	manifestFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wisp_manifest_files",
			Help: "Number of files in the resident manifest",
		},
	)
)

// RecordCacheLookup records a blob cache hit or miss.
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	blobCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordBlobFetch records bytes fetched from a hosting endpoint.
func RecordBlobFetch(n int) {
	blobBytesFetched.Add(float64(n))
}

// RecordResolution records an identity resolution outcome.
func RecordResolution(result string) {
	resolutionsTotal.WithLabelValues(result).Inc()
}

// RecordManifestFetch records a manifest assembly.
func RecordManifestFetch(d time.Duration, files int) {
	manifestFetchDuration.Observe(d.Seconds())
	manifestFiles.Set(float64(files))
}

// ClearManifest resets the resident-manifest gauge.
func ClearManifest() {
	manifestFiles.Set(0)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
