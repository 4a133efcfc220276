package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	violationsTotal       *prometheus.CounterVec
	finalizationsTotal    *prometheus.CounterVec
	liveMachines          prometheus.Gauge
	signalsPersistedTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_violations_total",
			Help: "Violations recorded, by category.",
		}, []string{"category"})

		finalizationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_finalizations_total",
			Help: "Test session finalization attempts, by trigger and result.",
		}, []string{"trigger", "result"})

		liveMachines = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_live_sessions",
			Help: "Test sessions currently driven by a connected candidate.",
		})

		signalsPersistedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_signals_persisted_total",
			Help: "Raw proctoring signals written to the audit table, by result.",
		}, []string{"result"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, violationsTotal,
			finalizationsTotal, liveMachines, signalsPersistedTotal)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// RecordViolation counts one persisted violation.
func RecordViolation(category string) {
	RegisterMetrics()
	violationsTotal.WithLabelValues(category).Inc()
}

// RecordFinalization counts one finalization attempt. result is "passed",
// "failed" or "error".
func RecordFinalization(trigger, result string) {
	RegisterMetrics()
	finalizationsTotal.WithLabelValues(trigger, result).Inc()
}

// LiveMachines exposes the gauge of connected sessions.
func LiveMachines() prometheus.Gauge {
	RegisterMetrics()
	return liveMachines
}

// RecordSignals counts audited signals.
func RecordSignals(result string, n int) {
	RegisterMetrics()
	signalsPersistedTotal.WithLabelValues(result).Add(float64(n))
}
