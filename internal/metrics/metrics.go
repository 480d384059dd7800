// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteminder_store_operations_total",
			Help: "Total number of calls to the hosted store and auth provider",
		},
		[]string{"op", "result"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noteminder_store_operation_duration_seconds",
			Help:    "Duration of calls to the hosted store and auth provider",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	RemindersTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "noteminder_reminders_triggered_total",
			Help: "Total number of reminders that crossed their threshold",
		},
	)

	AlertChannelFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteminder_alert_channel_failures_total",
			Help: "Alert side effects that failed or were skipped",
		},
		[]string{"channel"},
	)

	TrackedNotes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "noteminder_tracked_notes",
			Help: "Notes currently tracked by the reminder scheduler",
		},
	)
)

// ObserveStore records the outcome of one backend call started at start.
func ObserveStore(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperationsTotal.WithLabelValues(op, result).Inc()
	StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
