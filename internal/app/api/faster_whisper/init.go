package faster_whisper

import (
	"whisper-transcribe/internal/app/api/provider"
	"whisper-transcribe/internal/config"
)

func init() {
	provider.RegisterEngine(providerName, func(cfg *config.Config) (provider.Engine, error) {
		return NewEngine(cfg.FasterWhisper.Python, cfg.FasterWhisper.DownloadRoot), nil
	})
}
