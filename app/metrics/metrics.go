// Package metrics exports query, cache and upstream metrics in the
// Prometheus format.
package metrics

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/winhowes/RemoteData/app/runner"
	"github.com/winhowes/RemoteData/app/transport"
)

const namespace = "remotedata"

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds the collectors of one server. It implements
// runner.Observer.
type Metrics struct {
	registry         *prometheus.Registry
	queries          *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	upstream         *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	rateLimited      *prometheus.CounterVec
	lastReload       prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executed queries by outcome.",
		}, []string{"query", "outcome", "cache"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query execution time including the upstream call.",
			Buckets:   durationBuckets,
		}, []string{"query"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Response cache hits, misses, stores, bypasses and errors.",
		}, []string{"event"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_responses_total",
			Help:      "Upstream attempts by host and status code. Code 0 is a network error.",
		}, []string{"host", "code"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Duration of upstream attempts.",
			Buckets:   durationBuckets,
		}, []string{"host"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_events_total",
			Help:      "Requests rejected by the inbound rate limiter.",
		}, []string{"client"}),
		lastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reload_timestamp_seconds",
			Help:      "Unix time of the last successful configuration load.",
		}),
	}
	m.registry.MustRegister(
		m.queries,
		m.queryDuration,
		m.cacheEvents,
		m.upstream,
		m.upstreamDuration,
		m.rateLimited,
		m.lastReload,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveQuery records one query execution.
func (m *Metrics) ObserveQuery(name string, d time.Duration, cacheHit bool, err error) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.queries.WithLabelValues(name, Outcome(err), cache).Inc()
	m.queryDuration.WithLabelValues(name).Observe(d.Seconds())
	notify(name, d, cacheHit, err)
}

// CacheEvent counts a cache middleware event. It matches the signature of
// cache.Options.OnEvent.
func (m *Metrics) CacheEvent(event string) { m.cacheEvents.WithLabelValues(event).Inc() }

// ObserveUpstream records one transport attempt. It matches the signature
// of transport.Options.Observe.
func (m *Metrics) ObserveUpstream(host string, status int, d time.Duration) {
	m.upstream.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

// IncRateLimit counts a rejected inbound request.
func (m *Metrics) IncRateLimit(client string) { m.rateLimited.WithLabelValues(client).Inc() }

// MarkReload records a successful configuration load.
func (m *Metrics) MarkReload(t time.Time) { m.lastReload.Set(float64(t.Unix())) }

// Outcome classifies a query error for the outcome label.
func Outcome(err error) string {
	var (
		build  *runner.RequestBuildError
		decode *runner.DeserializationError
		terr   *transport.Error
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &build):
		return "request_error"
	case errors.As(err, &decode):
		return "decode_error"
	case errors.As(err, &terr):
		if terr.StatusCode == 0 {
			return "network_error"
		}
		return "upstream_error"
	}
	return "error"
}

// Handler serves the metrics, enforcing basic auth when user and pass are
// both set.
func (m *Metrics) Handler(user, pass string) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	if user == "" || pass == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized: invalid metrics credentials", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
