package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"whisper-transcribe/internal/app/api/provider"
	apperrors "whisper-transcribe/internal/app/errors"

	client "whisper-transcribe/internal/app/api/openai"
)

const providerName = "openai"

// RemoteTranscriber implements remote transcription using the OpenAI API.
type RemoteTranscriber struct {
	apiKey  string
	baseURL string
	model   string
}

// OpenAIProviderConfig represents configuration specific to the OpenAI engine
type OpenAIProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewRemoteTranscriber creates a new RemoteTranscriber instance. A missing API
// key is reported by Probe, not here.
func NewRemoteTranscriber(cfg OpenAIProviderConfig) *RemoteTranscriber {
	return &RemoteTranscriber{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// Name implements provider.Engine.
func (rt *RemoteTranscriber) Name() string {
	return providerName
}

// Probe checks that credentials are configured. It does not call the API.
func (rt *RemoteTranscriber) Probe(ctx context.Context) error {
	if _, err := client.NewClient(rt.apiKey, rt.baseURL); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// LoadModel picks the hosted model. Local size names such as "base" have no
// hosted equivalent and fall back to the configured model or whisper-1.
func (rt *RemoteTranscriber) LoadModel(ctx context.Context, opts provider.ModelOptions) (provider.Model, error) {
	c, err := client.NewClient(rt.apiKey, rt.baseURL)
	if err != nil {
		return nil, apperrors.Mark(err, apperrors.ErrModelLoadFailed)
	}

	model := rt.ModelFor(opts.Name)
	if opts.ComputeType != "" || opts.Device != "" {
		zap.L().Debug("hosted transcription ignores device and compute type",
			zap.String("device", opts.Device),
			zap.String("compute_type", string(opts.ComputeType)))
	}
	return &remoteModel{client: c, model: model}, nil
}

// ModelFor maps a requested model name to a hosted model id.
func (rt *RemoteTranscriber) ModelFor(name string) string {
	if isHostedModel(name) {
		return name
	}
	if rt.model != "" {
		return rt.model
	}
	return openai.Whisper1
}

func isHostedModel(name string) bool {
	return strings.HasPrefix(name, "whisper-") || strings.HasPrefix(name, "gpt-")
}

type remoteModel struct {
	client *openai.Client
	model  string
}

// Transcribe uploads the file and requests verbose_json so segments,
// language and duration come back in one response.
func (m *remoteModel) Transcribe(ctx context.Context, audioPath string, opts provider.DecodeOptions) (provider.SegmentReader, provider.Info, error) {
	req := openai.AudioRequest{
		Model:    m.model,
		FilePath: audioPath,
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	zap.L().Debug("requesting hosted transcription",
		zap.String("model", m.model),
		zap.String("language", opts.Language),
		zap.Int("beam_size", opts.BeamSize),
		zap.Bool("vad_filter", opts.VADFilter))

	resp, err := m.client.CreateTranscription(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, provider.Info{}, ctxErr
		}
		return nil, provider.Info{}, handleAPIError(err)
	}

	segments := make([]provider.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, provider.Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, provider.Segment{End: resp.Duration, Text: resp.Text})
	}

	info := provider.Info{
		Language: LanguageCode(resp.Language),
		Duration: resp.Duration,
	}
	if info.Duration == 0 && len(segments) > 0 {
		info.Duration = segments[len(segments)-1].End
	}

	return provider.NewSliceReader(segments), info, nil
}

// Close implements provider.Model.
func (m *remoteModel) Close() error {
	return nil
}

// handleAPIError converts client errors into transcription errors.
func handleAPIError(err error) error {
	te := &provider.TranscriptionError{
		Code:     "api_error",
		Message:  fmt.Sprintf("createTranscription failed: %v", err),
		Provider: providerName,
		Cause:    err,
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		te.Retryable = retryableStatus(apiErr.HTTPStatusCode)
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			te.Code = "unauthorized"
		}
	case errors.As(err, &reqErr):
		te.Retryable = retryableStatus(reqErr.HTTPStatusCode)
	default:
		te.Code = "network_error"
		te.Retryable = true
	}
	return apperrors.Mark(te, apperrors.ErrTranscriptionFailed)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

var _ provider.Engine = (*RemoteTranscriber)(nil)
