package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wrapify/wrapify/internal/metrics"
)

// unmatchedRoute labels requests chi could not route, so arbitrary paths
// never become label values.
const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight requests. The route
// label is the chi pattern (e.g. /api/wraps), read after routing.
// It is a pass-through when metrics.Register has not run.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metrics.RequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}

		method := strings.ToUpper(r.Method)
		metrics.Inflight.WithLabelValues(method).Inc()
		start := time.Now()
		wrapped := wrap(w)

		defer func() {
			metrics.Inflight.WithLabelValues(method).Dec()
			route := routePattern(r)
			metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		}()

		next.ServeHTTP(wrapped, r)
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
