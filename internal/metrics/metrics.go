// Package metrics is the ambient Prometheus surface shared by both HTTP
// routers (§4.10/§10), grounded on
// josedab-agenttrace/api/internal/middleware/metrics.go's promauto
// registration pattern, adapted to net/http + gorilla/mux instead of
// fiber.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lard_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	kldataMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lard_kldata_messages_total",
			Help: "Total number of /kldata batches handled, by result.",
		},
		[]string{"result"},
	)

	flagMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lard_flag_messages_total",
			Help: "Total number of flag records written from the XML stream.",
		},
		[]string{"result"},
	)

	permitCacheRefreshSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lard_permit_cache_refresh_seconds",
			Help:    "Time taken by each Permit Cache refresh cycle.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

// RecordKldataResult increments the kldata outcome counter.
func RecordKldataResult(result string) {
	kldataMessagesTotal.WithLabelValues(result).Inc()
}

// RecordFlagResult increments the XML-stream flag-write outcome counter.
func RecordFlagResult(result string) {
	flagMessagesTotal.WithLabelValues(result).Inc()
}

// RecordPermitCacheRefresh observes one Permit Cache refresh's duration.
func RecordPermitCacheRefresh(d time.Duration) {
	permitCacheRefreshSeconds.Observe(d.Seconds())
}

// Middleware records per-route request count and latency, to be
// installed with mux.Router.Use.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: rw, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if m := mux.CurrentRoute(r); m != nil {
			if tmpl, err := m.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
