// Package metrics exposes Prometheus instruments for the HTTP surface and
// for backtest runs, plus the request middleware that feeds them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "strategylab"

// Backtest outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Registry is a private Prometheus registry with the process collectors and
// every strategylab instrument registered on it.
type Registry struct {
	*prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	backtests        *prometheus.CounterVec
	backtestSeconds  *prometheus.HistogramVec
	pluginFailures   *prometheus.CounterVec
	feedbackRequests *prometheus.CounterVec
	jobsActive       *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		Registry: reg,

		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests being served.",
		}),

		backtests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtests_total",
			Help:      "Finished backtests by outcome.",
		}, []string{"status"}),
		// runs include the market data fetch, so the tail is long
		backtestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Backtest wall time by outcome.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 10, 30, 60, 300},
		}, []string{"status"}),
		pluginFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_failures_total",
			Help:      "Failed backtests by error code.",
		}, []string{"code"}),
		feedbackRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_requests_total",
			Help:      "LLM feedback requests by provider and result.",
		}, []string{"provider", "status"}),
		jobsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Queued or running async jobs by type.",
		}, []string{"type"}),
	}
}

// RecordRequest observes one served request. duration is in seconds.
func (r *Registry) RecordRequest(method, route string, status int, duration float64) {
	r.requests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.latency.WithLabelValues(method, route).Observe(duration)
}

func (r *Registry) InFlightInc() { r.inFlight.Inc() }

func (r *Registry) InFlightDec() { r.inFlight.Dec() }

// RecordBacktest counts a finished backtest. status is StatusSuccess or
// StatusFailure.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtests.WithLabelValues(status).Inc()
	r.backtestSeconds.WithLabelValues(status).Observe(duration)
}

// RecordPluginFailure counts a failed run under its error code.
func (r *Registry) RecordPluginFailure(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	r.pluginFailures.WithLabelValues(code).Inc()
}

func (r *Registry) RecordFeedback(provider, status string) {
	r.feedbackRequests.WithLabelValues(provider, status).Inc()
}

// SetJobsActive publishes the number of unfinished jobs of jobType.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return string(rune('0'+status/100)) + "xx"
}
