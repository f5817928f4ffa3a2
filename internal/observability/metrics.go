package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_requests_total",
		Help: "Total triage turns by final status",
	}, []string{"status"})

	safetyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_check_outcomes_total",
		Help: "Safety self-check outcomes",
	}, []string{"action"})

	requestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "request_latency_ms",
		Help: "End-to-end latency of a triage turn in milliseconds",
		// Buckets tuned for sub-second replies
		Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Count of degraded paths and errors by type",
	}, []string{"type"})
)

func RecordStatus(status string) {
	triageRequests.WithLabelValues(status).Inc()
}

func RecordSafety(action string) {
	if action != "" {
		safetyOutcomes.WithLabelValues(action).Inc()
	}
}

func ObserveLatency(ms float64) {
	requestLatency.Observe(ms)
}

func RecordError(errType string) {
	errorsTotal.WithLabelValues(errType).Inc()
}
