// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "riksbank_cache"

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ExportsTotal     *prometheus.CounterVec
	CachedDaysTotal  *prometheus.CounterVec
	SkippedDaysTotal *prometheus.CounterVec
	RangeHitsTotal   prometheus.Counter
	RateLookupsTotal *prometheus.CounterVec

	JobsTotal   *prometheus.CounterVec
	JobDuration prometheus.Histogram
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		ExportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Riksbank exports downloaded and cached, by outcome",
			},
			[]string{"currency", "result"},
		),
		CachedDaysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cached_days_total",
				Help:      "Daily rates handed to the cache",
			},
			[]string{"currency"},
		),
		SkippedDaysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_days_total",
				Help:      "Days left uncached, by reason",
			},
			[]string{"currency", "reason"},
		),
		RangeHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "range_hits_total",
				Help:      "Fetches skipped because the range was already cached",
			},
		),
		RateLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_lookups_total",
				Help:      "Cached rate lookups, by result",
			},
			[]string{"result"},
		),

		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Fetch jobs finished by the worker pool, by status",
			},
			[]string{"status"},
		),
		JobDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time spent processing a fetch job",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveJob(status string, elapsed time.Duration) {
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.Observe(elapsed.Seconds())
}
