package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "whisper-transcribe/internal/app/errors"
)

// Engine names accepted by --engine and TRANSCRIBE_ENGINE.
const (
	EngineFasterWhisper = "faster_whisper"
	EngineWhisperCpp    = "whisper_cpp"
	EngineOpenAI        = "openai"
)

// Config is the full runtime configuration of the transcribe command.
type Config struct {
	Engine      string `yaml:"engine" validate:"required,oneof=faster_whisper whisper_cpp openai"`
	Device      string `yaml:"device" validate:"required"`
	MetricsFile string `yaml:"metrics_file,omitempty"`

	Decode        DecodeConfig        `yaml:"-"`
	FasterWhisper FasterWhisperConfig `yaml:"faster_whisper"`
	WhisperCpp    WhisperCppConfig    `yaml:"whisper_cpp"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
}

// DecodeConfig holds the decoding parameters handed to every engine. They
// are fixed and cannot be set from a file or the environment.
type DecodeConfig struct {
	BeamSize             int  `validate:"min=1,max=64"`
	VADFilter            bool
	MinSilenceDurationMs int `validate:"min=0"`
}

// FasterWhisperConfig configures the Python faster-whisper worker.
type FasterWhisperConfig struct {
	Python       string `yaml:"python" validate:"required"`
	DownloadRoot string `yaml:"download_root,omitempty"`
}

// WhisperCppConfig configures the whisper.cpp command line engine.
type WhisperCppConfig struct {
	BinaryPath   string `yaml:"binary_path"`
	ModelsDir    string `yaml:"models_dir"`
	VADModelPath string `yaml:"vad_model_path,omitempty"`
	Threads      int    `yaml:"threads,omitempty" validate:"min=0"`
	TempDir      string `yaml:"temp_dir,omitempty"`
}

// OpenAIConfig configures the hosted transcription engine.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model   string `yaml:"model,omitempty"`
}

// Default returns the configuration used when nothing else is provided.
// Decode values match the reference faster-whisper invocation: beam size 5,
// VAD on, 500 ms minimum silence.
func Default() *Config {
	return &Config{
		Engine: EngineFasterWhisper,
		Device: "cpu",
		Decode: DecodeConfig{
			BeamSize:             5,
			VADFilter:            true,
			MinSilenceDurationMs: 500,
		},
		FasterWhisper: FasterWhisperConfig{
			Python: "python3",
		},
		WhisperCpp: WhisperCppConfig{
			BinaryPath: "whisper-cli",
			ModelsDir:  "models",
		},
	}
}

// LoadFile overlays the YAML file at path onto cfg. Values of the form
// ${VAR} are replaced with the environment variable.
func LoadFile(cfg *Config, path string) error {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.Mark(apperrors.NotFound("config file", path), apperrors.ErrInvalidConfig)
		}
		return apperrors.Mark(apperrors.Wrapf(err, "failed to read config file %s", path), apperrors.ErrInvalidConfig)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return apperrors.Mark(apperrors.Wrap(err, "failed to parse YAML"), apperrors.ErrInvalidConfig)
	}

	cfg.expandEnvironmentVariables()
	return nil
}

func (c *Config) expandEnvironmentVariables() {
	for _, field := range []*string{
		&c.MetricsFile,
		&c.FasterWhisper.Python,
		&c.FasterWhisper.DownloadRoot,
		&c.WhisperCpp.BinaryPath,
		&c.WhisperCpp.ModelsDir,
		&c.WhisperCpp.VADModelPath,
		&c.OpenAI.APIKey,
		&c.OpenAI.BaseURL,
	} {
		*field = expandPlaceholder(*field)
	}
}

func expandPlaceholder(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	}
	return value
}

var validate = validator.New()

// Validate checks struct constraints and returns the first violation in a
// readable form. The error matches apperrors.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(describe(err), apperrors.ErrInvalidConfig.Message())
	}
	return nil
}

func describe(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	fe := validationErrs[0]
	field := strings.ToLower(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return apperrors.RequiredField(field)
	case "oneof":
		return apperrors.InvalidField(field, fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value()))
	case "min", "max":
		return apperrors.Newf("%s out of range (%s=%s)", field, fe.Tag(), fe.Param())
	case "url":
		return apperrors.InvalidField(field, "must be an absolute URL")
	default:
		return apperrors.InvalidField(field, fe.Tag())
	}
}
