// Package metrics owns the Prometheus collectors: HTTP request metrics used
// by middleware.Metrics and the domain counters recorded by the services.
//
// REGISTRATION:
// Collectors are created once per process. Record* helpers are no-ops until
// Register has run, so packages can record unconditionally and tests need
// no registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once        sync.Once
	registerErr error

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Inflight        *prometheus.GaugeVec

	// Domain
	wrapsGenerated   prometheus.Counter
	upstreamDegraded *prometheus.CounterVec
	logins           *prometheus.CounterVec
	sessionsPruned   prometheus.Counter
)

// Register creates the collectors, registers them with reg (the default
// registerer when nil) and returns the /metrics handler.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrapify_http_requests_total",
			Help: "HTTP requests processed, by method, route and status.",
		}, []string{"method", "route", "status"})

		RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wrapify_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		Inflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wrapify_http_inflight_requests",
			Help: "Requests currently being served.",
		}, []string{"method"})

		wrapsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wrapify_wraps_generated_total",
			Help: "Wraps persisted.",
		})

		upstreamDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrapify_upstream_degraded_total",
			Help: "Spotify calls that answered non-2xx and were replaced by empty data.",
		}, []string{"call"})

		logins = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrapify_logins_total",
			Help: "OAuth callbacks by result.",
		}, []string{"result"}) // result: success|failure

		sessionsPruned = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wrapify_sessions_pruned_total",
			Help: "Expired sessions removed by the prune loop.",
		})

		for _, c := range []prometheus.Collector{
			RequestsTotal, RequestDuration, Inflight,
			wrapsGenerated, upstreamDegraded, logins, sessionsPruned,
		} {
			if err := registerCollector(reg, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector registers c, ignoring duplicates.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

func RecordWrapGenerated() {
	if wrapsGenerated != nil {
		wrapsGenerated.Inc()
	}
}

// RecordUpstreamDegraded counts a Spotify call that fell back to empty data.
func RecordUpstreamDegraded(call string) {
	if upstreamDegraded != nil {
		upstreamDegraded.WithLabelValues(call).Inc()
	}
}

func RecordLogin(result string) {
	if logins != nil {
		logins.WithLabelValues(result).Inc()
	}
}

func RecordSessionsPruned(n int64) {
	if sessionsPruned != nil && n > 0 {
		sessionsPruned.Add(float64(n))
	}
}
