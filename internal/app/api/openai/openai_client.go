package openai

import (
	"errors"

	"github.com/sashabaranov/go-openai"

	apperrors "whisper-transcribe/internal/app/errors"
)

// NewClient builds an API client. baseURL may point at any OpenAI compatible
// server; empty means the public API.
func NewClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, apperrors.Mark(errors.New("openai API key is required: set OPENAI_API_KEY"), apperrors.ErrMissingAPIKey)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config), nil
}
