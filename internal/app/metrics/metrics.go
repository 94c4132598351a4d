package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "whisper-transcribe/internal/app/errors"
)

const namespace = "transcribe"

// ProviderMetrics records per-run outcomes on a private registry. The command
// runs once per process, so metrics are exported by writing a node_exporter
// textfile rather than serving an endpoint.
type ProviderMetrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	audioSeconds  *prometheus.CounterVec
}

// NewProviderMetrics creates a new provider metrics instance
func NewProviderMetrics() *ProviderMetrics {
	m := &ProviderMetrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of transcription runs",
			},
			[]string{"engine", "status"}, // status: success, error
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of failed runs by error type",
			},
			[]string{"engine", "error_type"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall clock time of a transcription run in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"engine", "model"},
		),
		audioSeconds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_seconds_total",
				Help:      "Total seconds of audio transcribed",
			},
			[]string{"engine"},
		),
	}

	m.registry.MustRegister(m.runsTotal, m.failuresTotal, m.runDuration, m.audioSeconds)
	return m
}

// RecordSuccess records a successful transcription
func (m *ProviderMetrics) RecordSuccess(engine, model string, latency time.Duration, audioLengthSec float64) {
	m.runsTotal.WithLabelValues(engine, "success").Inc()
	m.runDuration.WithLabelValues(engine, model).Observe(latency.Seconds())
	if audioLengthSec > 0 {
		m.audioSeconds.WithLabelValues(engine).Add(audioLengthSec)
	}
}

// RecordFailure records a failed transcription
func (m *ProviderMetrics) RecordFailure(engine, model string, latency time.Duration, err error) {
	m.runsTotal.WithLabelValues(engine, "error").Inc()
	m.failuresTotal.WithLabelValues(engine, ErrorType(err)).Inc()
	m.runDuration.WithLabelValues(engine, model).Observe(latency.Seconds())
}

// Registry exposes the underlying registry for gathering.
func (m *ProviderMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes all metrics in the text exposition format. The file
// is replaced atomically.
func (m *ProviderMetrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// ErrorType classifies err for the error_type label.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, apperrors.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, apperrors.ErrAudioNotFound):
		return "audio_not_found"
	case errors.Is(err, apperrors.ErrEngineNotFound):
		return "engine_not_found"
	case errors.Is(err, apperrors.ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, apperrors.ErrModelLoadFailed):
		return "model_load_failed"
	case errors.Is(err, apperrors.ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(err, apperrors.ErrProtocol):
		return "protocol"
	default:
		return "unknown"
	}
}
