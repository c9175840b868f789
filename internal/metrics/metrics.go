// Package metrics exposes the Prometheus collectors for the HTTP surface,
// the scheduler jobs, and the upstream adapters. A nil *Set is a valid
// no-op sink, so callers never need to guard their observation sites.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set owns the registry and every collector of the process.
type Set struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	samples       *prometheus.CounterVec
	watchlistSize prometheus.Gauge
	upstream      *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
}

// New builds a Set backed by its own registry, pre-registered with the Go
// runtime and process collectors.
func New() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Set{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steampulse_http_requests_total",
			Help: "Count of handled HTTP requests by route template, method, and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "steampulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steampulse_scheduler_job_runs_total",
			Help: "Count of scheduler job completions by job and outcome.",
		}, []string{"job", "status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "steampulse_scheduler_job_duration_seconds",
			Help:    "Scheduler job run time by job.",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steampulse_player_samples_total",
			Help: "Count of player-count sampling attempts by outcome.",
		}, []string{"status"}),
		watchlistSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "steampulse_watchlist_size",
			Help: "Number of titles currently on the watchlist.",
		}),
		upstream: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steampulse_upstream_requests_total",
			Help: "Count of upstream HTTP responses by provider, method, and status code.",
		}, []string{"provider", "method", "code"}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steampulse_auth_failures_total",
			Help: "Count of rejected signed requests by rejection kind.",
		}, []string{"kind"}),
	}
}

// Handler serves the exposition endpoint for this set's registry.
func (s *Set) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler counts and times requests under the given route
// template. The template, not the raw path, becomes the label so path
// parameters do not explode the cardinality.
func (s *Set) InstrumentHandler(route string, next http.Handler) http.Handler {
	if s == nil {
		return next
	}
	labels := prometheus.Labels{"route": route}
	h := promhttp.InstrumentHandlerDuration(s.httpDuration.MustCurryWith(labels), next)
	return promhttp.InstrumentHandlerCounter(s.httpRequests.MustCurryWith(labels), h)
}

// UpstreamTransport wraps base so every response through it is counted
// under the provider label.
func (s *Set) UpstreamTransport(provider string, base http.RoundTripper) http.RoundTripper {
	if s == nil {
		return base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(
		s.upstream.MustCurryWith(prometheus.Labels{"provider": provider}), base)
}

// ObserveJob records one scheduler job completion.
func (s *Set) ObserveJob(job string, err error, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.jobRuns.WithLabelValues(job, outcome(err)).Inc()
	s.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// ObserveSample records one player-count sampling attempt.
func (s *Set) ObserveSample(err error) {
	if s == nil {
		return
	}
	s.samples.WithLabelValues(outcome(err)).Inc()
}

// SetWatchlistSize publishes the current watchlist size.
func (s *Set) SetWatchlistSize(n int) {
	if s == nil {
		return
	}
	s.watchlistSize.Set(float64(n))
}

// ObserveAuthFailure records one signed-request rejection. kind is a small
// closed vocabulary (replay, stale, bad signature, ...), never raw input.
func (s *Set) ObserveAuthFailure(kind string) {
	if s == nil {
		return
	}
	s.authFailures.WithLabelValues(kind).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
