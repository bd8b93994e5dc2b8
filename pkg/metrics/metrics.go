package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rotation run metrics
var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_runs_total",
			Help: "Total number of rotation runs by outcome",
		},
		[]string{"angle", "outcome"}, // outcome: done, failed
	)

	RunsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_runs_rejected_total",
			Help: "Rotation requests rejected by a pre-flight guard",
		},
		[]string{"reason"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rotate_run_duration_seconds",
			Help:    "Wall clock duration of rotation runs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	RunProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rotate_run_progress_percent",
			Help: "Progress of the current run (0-100)",
		},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rotate_runs_in_flight",
			Help: "1 while a run holds the engine working storage",
		},
	)
)

// Engine metrics
var (
	EngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rotate_engine_ready",
			Help: "1 once the transcoding engine finished initialization",
		},
	)

	EngineLogLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_engine_log_lines_total",
			Help: "Engine log lines observed, by whether a timestamp was found",
		},
		[]string{"timestamp"}, // "yes", "no"
	)

	MetadataTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_metadata_total",
			Help: "Metadata resolutions by result",
		},
		[]string{"result"}, // resolved, unavailable, stale
	)
)

// Delivery metrics
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_deliveries_total",
			Help: "Output artifacts handed to a delivery backend",
		},
		[]string{"backend", "status"},
	)

	DeliveredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rotate_delivered_bytes_total",
			Help: "Bytes of delivered output artifacts",
		},
	)
)

// Queue metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rotate_jobs_total",
			Help: "Queued rotation jobs by status",
		},
		[]string{"status"},
	)
)
