package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"whisper-transcribe/internal/app/api/provider"
	apperrors "whisper-transcribe/internal/app/errors"
	"whisper-transcribe/internal/app/metrics"
	"whisper-transcribe/internal/app/model"
	"whisper-transcribe/internal/app/progress"
	"whisper-transcribe/internal/config"
)

// Request describes one transcription.
type Request struct {
	AudioPath   string
	Model       string
	Language    string // language code or "auto"
	ComputeType provider.ComputeType
}

// ServiceConfig holds the collaborators and engine settings of a Service.
// Metrics and Progress are optional.
type ServiceConfig struct {
	Device       string
	DownloadRoot string
	Decode       config.DecodeConfig
	Logger       *zap.Logger
	Metrics      *metrics.ProviderMetrics
	Progress     *progress.ProgressManager
}

// Service turns an audio file into a Result using one engine.
type Service struct {
	engine   provider.Engine
	device   string
	download string
	decode   config.DecodeConfig
	logger   *zap.Logger
	metrics  *metrics.ProviderMetrics
	progress *progress.ProgressManager
}

// NewService creates a Service backed by engine.
func NewService(engine provider.Engine, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	device := cfg.Device
	if device == "" {
		device = "cpu"
	}
	pm := cfg.Progress
	if pm == nil {
		pm = progress.NewProgressManager(progress.ProgressConfig{Enabled: false})
	}
	return &Service{
		engine:   engine,
		device:   device,
		download: cfg.DownloadRoot,
		decode:   cfg.Decode,
		logger:   logger,
		metrics:  cfg.Metrics,
		progress: pm,
	}
}

// Transcribe runs the whole pipeline and never fails: every error, including
// a panic inside the engine, becomes a failure Result.
func (s *Service) Transcribe(ctx context.Context, req Request) model.Result {
	start := time.Now()

	if _, err := os.Stat(req.AudioPath); err != nil {
		notFound := apperrors.AudioNotFound(req.AudioPath)
		s.recordFailure(req, start, notFound)
		return model.FailureFromError(notFound)
	}

	transcript, info, err := s.run(ctx, req)
	if err != nil {
		s.logger.Error("Error during transcription: " + err.Error())
		var te *provider.TranscriptionError
		if errors.As(err, &te) {
			s.logger.Debug("engine error",
				zap.String("provider", te.Provider),
				zap.String("code", te.Code),
				zap.Bool("retryable", te.Retryable))
		}
		s.recordFailure(req, start, err)
		return model.FailureFromError(err)
	}

	language := info.Language
	if language == "" {
		language = req.Language
	}

	if s.metrics != nil {
		s.metrics.RecordSuccess(s.engine.Name(), req.Model, time.Since(start), info.Duration)
	}
	return model.Success(transcript, language, info.Duration)
}

func (s *Service) run(ctx context.Context, req Request) (transcript string, info provider.Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("engine panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%v", r)
		}
	}()

	s.logger.Info("Loading model: " + req.Model)
	m, err := s.engine.LoadModel(ctx, provider.ModelOptions{
		Name:         req.Model,
		Device:       s.device,
		ComputeType:  req.ComputeType,
		DownloadRoot: s.download,
	})
	if err != nil {
		return "", provider.Info{}, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			s.logger.Debug("closing model failed", zap.Error(cerr))
		}
	}()

	s.logger.Info("Transcribing: " + req.AudioPath)
	reader, info, err := m.Transcribe(ctx, req.AudioPath, provider.DecodeOptions{
		Language:             provider.NormalizeLanguage(req.Language),
		BeamSize:             s.decode.BeamSize,
		VADFilter:            s.decode.VADFilter,
		MinSilenceDurationMs: s.decode.MinSilenceDurationMs,
	})
	if err != nil {
		return "", provider.Info{}, err
	}
	defer reader.Close()

	bar := s.progress.CreateBar(info.Duration, "Transcribing")
	text, err := drain(ctx, reader, bar)
	if err != nil {
		bar.Abort()
		return "", provider.Info{}, err
	}
	bar.Complete()

	s.logger.Info("Transcription complete")
	return text, info, nil
}

// drain reads every segment in order and joins their text with no separator.
func drain(ctx context.Context, reader provider.SegmentReader, bar *progress.ProgressBar) (string, error) {
	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		seg, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(seg.Text)
		bar.SetCurrent(seg.End)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (s *Service) recordFailure(req Request, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordFailure(s.engine.Name(), req.Model, time.Since(start), err)
	}
}
