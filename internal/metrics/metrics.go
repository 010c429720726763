// Package metrics holds the Prometheus collectors for model calls, runs and
// the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Model call metrics
	ModelCalls        *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec

	// Run metrics
	Runs              *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	SummaryPasses     prometheus.Histogram
	TranscribeWindows *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry so multiple instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ModelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_model_calls_total",
			Help: "Total number of model calls by backend operation and outcome",
		}, []string{"op", "outcome"}),
		ModelCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumen_model_call_duration_seconds",
			Help:    "Duration of model calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"op"}),

		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_runs_total",
			Help: "Total number of orchestrator runs by kind and status",
		}, []string{"kind", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumen_run_duration_seconds",
			Help:    "Duration of orchestrator runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27 minutes
		}, []string{"kind"}),
		SummaryPasses: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lumen_summary_passes",
			Help:    "Chunk-and-summarize passes per summarization run",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),
		TranscribeWindows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_transcribe_windows_total",
			Help: "Transcription windows by outcome",
		}, []string{"status"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordModelCall records one model invocation.
func (m *Metrics) RecordModelCall(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ModelCalls.WithLabelValues(op, outcome).Inc()
	m.ModelCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRun records a finished orchestrator run.
func (m *Metrics) RecordRun(kind, status string, d time.Duration) {
	m.Runs.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) RecordSummaryPasses(passes int) {
	m.SummaryPasses.Observe(float64(passes))
}

func (m *Metrics) RecordWindow(status string) {
	m.TranscribeWindows.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
