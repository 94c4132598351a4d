package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "whisper-transcribe/internal/app/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, EngineFasterWhisper, cfg.Engine)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, 5, cfg.Decode.BeamSize)
	assert.True(t, cfg.Decode.VADFilter)
	assert.Equal(t, 500, cfg.Decode.MinSilenceDurationMs)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_WHISPER_BIN", "/usr/local/bin/whisper-cli")

	content := `
engine: whisper_cpp
whisper_cpp:
  binary_path: ${TEST_WHISPER_BIN}
  models_dir: /srv/models
  threads: 4
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))

	assert.Equal(t, EngineWhisperCpp, cfg.Engine)
	assert.Equal(t, "/usr/local/bin/whisper-cli", cfg.WhisperCpp.BinaryPath)
	assert.Equal(t, "/srv/models", cfg.WhisperCpp.ModelsDir)
	assert.Equal(t, 4, cfg.WhisperCpp.Threads)
	assert.Equal(t, "python3", cfg.FasterWhisper.Python, "untouched sections keep defaults")
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()

	err := LoadFile(cfg, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine: [unterminated"), 0644))
	err = LoadFile(cfg, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
}

func TestLoadFileIgnoresDecodeParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.yaml")
	content := "decode:\n  beam_size: 1\n  vad_filter: false\n  min_silence_duration_ms: 2000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))
	assert.Equal(t, DecodeConfig{BeamSize: 5, VADFilter: true, MinSilenceDurationMs: 500}, cfg.Decode)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(cfg *Config)
		errorContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:          "unknown engine",
			mutate:        func(cfg *Config) { cfg.Engine = "vosk" },
			errorContains: "must be one of",
		},
		{
			name:          "empty engine",
			mutate:        func(cfg *Config) { cfg.Engine = "" },
			errorContains: "is required",
		},
		{
			name:          "zero beam size",
			mutate:        func(cfg *Config) { cfg.Decode.BeamSize = 0 },
			errorContains: "out of range",
		},
		{
			name:          "negative silence",
			mutate:        func(cfg *Config) { cfg.Decode.MinSilenceDurationMs = -1 },
			errorContains: "out of range",
		},
		{
			name:          "missing python",
			mutate:        func(cfg *Config) { cfg.FasterWhisper.Python = "" },
			errorContains: "python is required",
		},
		{
			name:          "malformed openai base url",
			mutate:        func(cfg *Config) { cfg.OpenAI.BaseURL = "not a url" },
			errorContains: "baseurl is invalid",
		},
		{
			name:   "openai base url",
			mutate: func(cfg *Config) { cfg.OpenAI.BaseURL = "http://localhost:8000/v1" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration: "), err.Error())
			assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
		})
	}
}
