// Package metrics exposes Prometheus instrumentation for the pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksTotal counts audio chunks handled per component.
	// Labels: component (capture/transcription/diarization), status (ok/error/dropped).
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openmeet_chunks_total",
			Help: "Audio chunks processed by component and status",
		},
		[]string{"component", "status"},
	)

	// EngineErrorsTotal counts engine failures by error code.
	EngineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openmeet_engine_errors_total",
			Help: "Engine invocation errors by engine and error code",
		},
		[]string{"engine", "code"},
	)

	// EngineDuration measures engine invocation latency.
	EngineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openmeet_engine_duration_seconds",
			Help:    "Engine invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"engine"},
	)

	// SessionsTotal counts finished sessions by outcome.
	// Labels: outcome (completed/discarded/failed).
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openmeet_sessions_total",
			Help: "Finished recording sessions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionActive is 1 while a session is recording or finalizing.
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openmeet_session_active",
			Help: "Whether a session is currently active (0 or 1)",
		},
	)
)

// RecordChunk records a processed chunk outcome.
func RecordChunk(component, status string) {
	ChunksTotal.WithLabelValues(component, status).Inc()
}

// RecordEngineError records an engine failure.
func RecordEngineError(engine, code string) {
	EngineErrorsTotal.WithLabelValues(engine, code).Inc()
}

// ObserveEngine records an engine invocation duration in seconds.
func ObserveEngine(engine string, seconds float64) {
	EngineDuration.WithLabelValues(engine).Observe(seconds)
}
