package whisper_cpp

import (
	"whisper-transcribe/internal/app/api/provider"
	"whisper-transcribe/internal/config"
)

func init() {
	provider.RegisterEngine(providerName, createWhisperCppEngine)
}

// createWhisperCppEngine creates a whisper.cpp engine from configuration
func createWhisperCppEngine(cfg *config.Config) (provider.Engine, error) {
	return NewLocalTranscriber(LocalProviderConfig{
		BinaryPath:   cfg.WhisperCpp.BinaryPath,
		ModelsDir:    cfg.WhisperCpp.ModelsDir,
		VADModelPath: cfg.WhisperCpp.VADModelPath,
		Threads:      cfg.WhisperCpp.Threads,
		TempDir:      cfg.WhisperCpp.TempDir,
	}), nil
}
