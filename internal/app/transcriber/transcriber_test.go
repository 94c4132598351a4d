package transcriber

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"whisper-transcribe/internal/app/api/provider"
	apperrors "whisper-transcribe/internal/app/errors"
	"whisper-transcribe/internal/app/logging"
	"whisper-transcribe/internal/app/metrics"
	"whisper-transcribe/internal/app/model"
	mocks "whisper-transcribe/internal/app/testutil"
	"whisper-transcribe/internal/config"
)

func defaultDecode() config.DecodeConfig {
	return config.Default().Decode
}

func createAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func defaultRequest(path string) Request {
	return Request{
		AudioPath:   path,
		Model:       "base",
		Language:    "auto",
		ComputeType: provider.ComputeInt8,
	}
}

func expectedDecode() provider.DecodeOptions {
	return provider.DecodeOptions{BeamSize: 5, VADFilter: true, MinSilenceDurationMs: 500}
}

func newService(engine provider.Engine, logs *bytes.Buffer) *Service {
	return NewService(engine, ServiceConfig{
		Device: "cpu",
		Decode: defaultDecode(),
		Logger: logging.NewLogger(false, logs),
	})
}

func assertSuccess(t *testing.T, r model.Result, transcript, language string, duration float64) {
	t.Helper()
	require.True(t, r.Success, "unexpected failure: %v", r.Error)
	require.NotNil(t, r.Transcript)
	require.NotNil(t, r.Language)
	require.NotNil(t, r.Duration)
	assert.Equal(t, transcript, *r.Transcript)
	assert.Equal(t, language, *r.Language)
	assert.InDelta(t, duration, *r.Duration, 1e-9)
	assert.Nil(t, r.Error)
}

func assertFailure(t *testing.T, r model.Result, message string) {
	t.Helper()
	require.False(t, r.Success)
	require.NotNil(t, r.Error)
	assert.Equal(t, message, *r.Error)
	assert.Nil(t, r.Transcript)
}

func TestTranscribe_ConcatenatesSegmentsWithoutSeparator(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, expectedDecode()).
		Return(mocks.Segments("Hello ", "world."), provider.Info{Language: "en", Duration: 2.5}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, provider.ModelOptions{Name: "base", Device: "cpu", ComputeType: provider.ComputeInt8}).
		Return(mm, nil)

	var logs bytes.Buffer
	result := newService(engine, &logs).Transcribe(context.Background(), defaultRequest(audio))

	assertSuccess(t, result, "Hello world.", "en", 2.5)
	assert.Equal(t, "Loading model: base\nTranscribing: "+audio+"\nTranscription complete\n", logs.String())
	engine.AssertExpectations(t)
	mm.AssertExpectations(t)
}

func TestTranscribe_TrimsSurroundingWhitespace(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(mocks.Segments(" \n Ask not", " what your country ", "can do.\t "), provider.Info{Language: "en", Duration: 11}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), defaultRequest(audio))
	assertSuccess(t, result, "Ask not what your country can do.", "en", 11)
}

func TestTranscribe_NoSegments(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(mocks.Segments(), provider.Info{Language: "en", Duration: 4}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), defaultRequest(audio))
	assertSuccess(t, result, "", "en", 4)
}

func TestTranscribe_MissingFileNeverLoadsModel(t *testing.T) {
	engine := mocks.NewMockEngine("faster_whisper")
	missing := filepath.Join(t.TempDir(), "nope.wav")

	var logs bytes.Buffer
	result := newService(engine, &logs).Transcribe(context.Background(), defaultRequest(missing))

	assertFailure(t, result, "Audio file not found: "+missing)
	engine.AssertNotCalled(t, "LoadModel", mock.Anything, mock.Anything)
	assert.Empty(t, logs.String())
}

func TestTranscribe_ExplicitLanguage(t *testing.T) {
	audio := createAudioFile(t)

	decode := expectedDecode()
	decode.Language = "de"

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, decode).
		Return(mocks.Segments("Hallo"), provider.Info{Language: "de", Duration: 1}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	req := defaultRequest(audio)
	req.Language = "de"
	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), req)

	assertSuccess(t, result, "Hallo", "de", 1)
	mm.AssertExpectations(t)
}

func TestTranscribe_LanguageFallsBackToRequest(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(mocks.Segments("Bonjour"), provider.Info{}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("whisper_cpp")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	req := defaultRequest(audio)
	req.Language = "fr"
	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), req)

	assertSuccess(t, result, "Bonjour", "fr", 0)
}

func TestTranscribe_ModelLoadFailure(t *testing.T) {
	audio := createAudioFile(t)

	engine := mocks.NewMockEngine("faster_whisper")
	loadErr := apperrors.Mark(errors.New("Invalid model size 'huge'"), apperrors.ErrModelLoadFailed)
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(nil, loadErr)

	var logs bytes.Buffer
	result := newService(engine, &logs).Transcribe(context.Background(), defaultRequest(audio))

	assertFailure(t, result, "Invalid model size 'huge'")
	assert.Contains(t, logs.String(), "Loading model: base\n")
	assert.Contains(t, logs.String(), "Error during transcription: Invalid model size 'huge'\n")
	assert.NotContains(t, logs.String(), "Transcribing:")
}

func TestTranscribe_LogsEngineErrorDetails(t *testing.T) {
	audio := createAudioFile(t)

	engine := mocks.NewMockEngine("openai")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(nil, &provider.TranscriptionError{
		Code:      "api_error",
		Message:   "rate limited",
		Provider:  "openai",
		Retryable: true,
	})

	var logs bytes.Buffer
	svc := NewService(engine, ServiceConfig{
		Decode: defaultDecode(),
		Logger: logging.NewLogger(true, &logs),
	})
	result := svc.Transcribe(context.Background(), defaultRequest(audio))

	assertFailure(t, result, "rate limited")
	assert.Contains(t, logs.String(), "engine error")
	assert.Contains(t, logs.String(), "api_error")
	assert.Contains(t, logs.String(), "retryable")

	var quiet bytes.Buffer
	newService(engine, &quiet).Transcribe(context.Background(), defaultRequest(audio))
	assert.NotContains(t, quiet.String(), "api_error", "details are debug output")
}

func TestTranscribe_DecodeFailureClosesModel(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(nil, provider.Info{}, errors.New("ffmpeg could not decode input"))
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), defaultRequest(audio))

	assertFailure(t, result, "ffmpeg could not decode input")
	mm.AssertCalled(t, "Close")
}

func TestTranscribe_StreamErrorDiscardsPartialText(t *testing.T) {
	audio := createAudioFile(t)

	reader := &mocks.FailingReader{
		Segments: []provider.Segment{{Text: "partial "}},
		Err:      errors.New("worker stopped mid-stream"),
	}
	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(reader, provider.Info{Language: "en", Duration: 5}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), defaultRequest(audio))

	assertFailure(t, result, "worker stopped mid-stream")
	assert.True(t, reader.Closed)
}

func TestTranscribe_RecoversEnginePanic(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Run(func(mock.Arguments) { panic("CUDA driver exploded") })
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	result := newService(engine, &bytes.Buffer{}).Transcribe(context.Background(), defaultRequest(audio))

	assertFailure(t, result, "CUDA driver exploded")
	mm.AssertCalled(t, "Close")
}

func TestTranscribe_CancelledContext(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(mocks.Segments("a", "b"), provider.Info{Language: "en"}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newService(engine, &bytes.Buffer{}).Transcribe(ctx, defaultRequest(audio))
	assertFailure(t, result, context.Canceled.Error())
}

func TestTranscribe_RecordsMetrics(t *testing.T) {
	audio := createAudioFile(t)

	mm := &mocks.MockModel{}
	mm.On("Transcribe", mock.Anything, audio, mock.Anything).
		Return(mocks.Segments("ok"), provider.Info{Language: "en", Duration: 7}, nil)
	mm.On("Close").Return(nil)

	engine := mocks.NewMockEngine("faster_whisper")
	engine.On("LoadModel", mock.Anything, mock.Anything).Return(mm, nil)

	m := metrics.NewProviderMetrics()
	svc := NewService(engine, ServiceConfig{Decode: defaultDecode(), Metrics: m})

	svc.Transcribe(context.Background(), defaultRequest(audio))
	svc.Transcribe(context.Background(), defaultRequest(filepath.Join(t.TempDir(), "missing.wav")))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), `transcribe_runs_total{engine="faster_whisper",status="success"} 1`)
	assert.Contains(t, string(data), `transcribe_runs_total{engine="faster_whisper",status="error"} 1`)
	assert.Contains(t, string(data), `transcribe_failures_total{engine="faster_whisper",error_type="audio_not_found"} 1`)
	count, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(mocks.NewMockEngine("x"), ServiceConfig{})
	assert.Equal(t, "cpu", svc.device)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.progress)
}

func TestDrainHonorsContextBetweenSegments(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := drain(ctx, mocks.Segments("x"), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
