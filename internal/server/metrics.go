package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "track",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "The number of HTTP requests served, by route and status code.",
		}, []string{"route", "code"})

	requestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "track",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Bucketed histogram of request handling duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.0, 14),
		}, []string{"route"})
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDurationHistogram)
}

// metricsMiddleware records per-route counters and latencies. The route
// label uses the chi pattern, not the raw path, to keep cardinality
// bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		requestDurationHistogram.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
