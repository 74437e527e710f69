package middleware

import (
	"net/http"
	"time"

	"github.com/ekaya-inc/shopper-shelf/pkg/metrics"
)

// PrometheusMetrics records request counts and latency per route pattern.
// It must wrap the ServeMux so that the matched pattern is known.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, route, wrapped.statusCode, time.Since(start))
	})
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
