package whisper

import (
	"whisper-transcribe/internal/app/api/provider"
	"whisper-transcribe/internal/config"
)

func init() {
	// Register openai engine with the registry
	provider.RegisterEngine(providerName, createOpenAIEngine)
}

// createOpenAIEngine creates an OpenAI Whisper engine from configuration
func createOpenAIEngine(cfg *config.Config) (provider.Engine, error) {
	return NewRemoteTranscriber(OpenAIProviderConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}), nil
}
