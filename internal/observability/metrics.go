package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec
	evalRunsTotal     *prometheus.CounterVec
	evalCasesTotal    *prometheus.CounterVec
	sseClientsActive  prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used for API and
// evaluation observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evalRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eval_runs_total",
			Help: "Total number of evaluation runs by terminal status.",
		}, []string{"status"})

		evalCasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eval_cases_total",
			Help: "Total number of evaluated test cases by outcome.",
		}, []string{"outcome"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Number of currently connected SSE subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evalRunsTotal,
			evalCasesTotal,
			sseClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvalRuns exposes the counter for finished evaluation runs.
func EvalRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return evalRunsTotal
}

// EvalCases exposes the counter for evaluated test cases.
func EvalCases() *prometheus.CounterVec {
	RegisterMetrics()
	return evalCasesTotal
}

// SSEClientsActive exposes the gauge of connected event stream clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
