// Package metrics holds the Prometheus instruments for driving sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Telemetry
	FixesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driver_fixes_ingested_total",
			Help: "Total number of GPS fixes applied to session routes",
		},
	)

	OutOfOrderFixes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driver_fixes_out_of_order_total",
			Help: "Total number of fixes older than the previous route point",
		},
	)

	SensorUnavailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driver_sensor_unavailable_total",
			Help: "Total number of sessions that started without a location sensor",
		},
	)

	// Sessions
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_sessions_started_total",
			Help: "Total number of driving sessions started",
		},
		[]string{"type"},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_sessions_finished_total",
			Help: "Total number of driving sessions finished",
		},
		[]string{"type"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driver_sessions_active",
			Help: "Current number of active driving sessions",
		},
	)

	ErrorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_error_events_total",
			Help: "Total number of driving errors recorded",
		},
		[]string{"severity"},
	)

	FinalScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driver_session_final_score",
			Help:    "Distribution of final session scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10), // 10..100
		},
	)

	// Storage
	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_session_storage_failures_total",
			Help: "Total number of session storage failures",
		},
		[]string{"operation"},
	)

	ProgressUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driver_progress_update_failures_total",
			Help: "Total number of best-effort progress updates that failed",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_events_published_total",
			Help: "Total number of session events published to the broker",
		},
		[]string{"result"},
	)

	// Stream
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driver_stream_clients",
			Help: "Current number of websocket watchers",
		},
	)
)
