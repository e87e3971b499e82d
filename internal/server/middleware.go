package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zsiec/omafgen/internal/logger"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "omafgen_http_request_duration_seconds",
		Help:    "Duration of status server requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omafgen_http_requests_total",
		Help: "Total number of status server requests",
	}, []string{"method", "route", "status"})
)

// metricsMiddleware records every routed request. Scrapes of the metrics
// endpoint itself are not counted.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(r)
		if route == s.metricsPath() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := logger.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.StatusCode())
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// routeName returns the matched route template so unknown paths do not
// create new label values.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
