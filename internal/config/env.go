package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigFile   = "TRANSCRIBE_CONFIG"
	EnvEngine       = "TRANSCRIBE_ENGINE"
	EnvDevice       = "TRANSCRIBE_DEVICE"
	EnvPython       = "TRANSCRIBE_PYTHON"
	EnvDownloadRoot = "TRANSCRIBE_DOWNLOAD_ROOT"
	EnvMetricsFile  = "TRANSCRIBE_METRICS_FILE"

	EnvWhisperCppBinary   = "WHISPER_CPP_BINARY"
	EnvWhisperCppModels   = "WHISPER_CPP_MODELS_DIR"
	EnvWhisperCppVADModel = "WHISPER_CPP_VAD_MODEL"

	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvOpenAIURL   = "OPENAI_BASE_URL"
	EnvOpenAIModel = "OPENAI_TRANSCRIBE_MODEL"
)

// LoadEnv loads environment variables from the first .env file found in the
// working directory. Variables already set in the process win over the file.
// It returns the path that was loaded, or "" when none exists.
func LoadEnv() (string, error) {
	envPaths := []string{
		".env",
		".env.local",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return "", fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			return envPath, nil
		}
	}

	return "", nil
}

// ApplyEnv overlays non-empty environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Engine, EnvEngine)
	setFromEnv(&cfg.Device, EnvDevice)
	setFromEnv(&cfg.MetricsFile, EnvMetricsFile)

	setFromEnv(&cfg.FasterWhisper.Python, EnvPython)
	setFromEnv(&cfg.FasterWhisper.DownloadRoot, EnvDownloadRoot)

	setFromEnv(&cfg.WhisperCpp.BinaryPath, EnvWhisperCppBinary)
	setFromEnv(&cfg.WhisperCpp.ModelsDir, EnvWhisperCppModels)
	setFromEnv(&cfg.WhisperCpp.VADModelPath, EnvWhisperCppVADModel)

	setFromEnv(&cfg.OpenAI.APIKey, EnvOpenAIKey)
	setFromEnv(&cfg.OpenAI.BaseURL, EnvOpenAIURL)
	setFromEnv(&cfg.OpenAI.Model, EnvOpenAIModel)
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Load builds the effective configuration: defaults, then the YAML file (if
// path or TRANSCRIBE_CONFIG names one), then the environment. Flags are
// applied by the caller afterwards.
func Load(path string) (*Config, error) {
	if _, err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg)
	return cfg, nil
}
