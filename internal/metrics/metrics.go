package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of every engine operation,
	// labeled by operation name and success/failed outcome.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chango_operation_duration_seconds",
			Help: "Duration of escrow engine operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "status"},
	)

	// EventsEmitted counts the audit events written to the event feed,
	// labeled by event kind.
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chango_events_emitted_total",
			Help: "Total number of audit events emitted",
		},
		[]string{"kind"},
	)
)

// RecordOperationDuration records the duration of one engine operation.
func RecordOperationDuration(operation, status string, duration float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordEventEmitted counts one emitted audit event.
func RecordEventEmitted(kind string) {
	EventsEmitted.WithLabelValues(kind).Inc()
}
