package whisper_cpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whisper-transcribe/internal/app/api/provider"
	"whisper-transcribe/internal/app/audio"
	apperrors "whisper-transcribe/internal/app/errors"
)

const providerName = "whisper_cpp"

// LocalTranscriber runs the whisper.cpp command line binary.
type LocalTranscriber struct {
	binaryPath   string
	modelsDir    string
	vadModelPath string
	threads      int
	tempDir      string
	tools        audio.Toolchain
}

// LocalProviderConfig represents configuration specific to the whisper.cpp engine
type LocalProviderConfig struct {
	BinaryPath   string
	ModelsDir    string
	VADModelPath string
	Threads      int
	TempDir      string
}

// NewLocalTranscriber creates a new instance of LocalTranscriber.
func NewLocalTranscriber(cfg LocalProviderConfig) *LocalTranscriber {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &LocalTranscriber{
		binaryPath:   cfg.BinaryPath,
		modelsDir:    cfg.ModelsDir,
		vadModelPath: cfg.VADModelPath,
		threads:      cfg.Threads,
		tempDir:      cfg.TempDir,
		tools:        audio.DefaultToolchain(),
	}
}

// Name implements provider.Engine.
func (lt *LocalTranscriber) Name() string {
	return providerName
}

// Probe checks that the whisper.cpp binary can be found.
func (lt *LocalTranscriber) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(lt.binaryPath); err != nil {
		return apperrors.Unavailable(fmt.Errorf("whisper.cpp binary not found at %s: install whisper.cpp or set WHISPER_CPP_BINARY", lt.binaryPath))
	}
	return nil
}

// ModelPath maps a model size such as "base" or "large-v3" to
// <models_dir>/ggml-<name>.bin. Names that already look like a file path are
// used as given.
func (lt *LocalTranscriber) ModelPath(name string) string {
	if strings.ContainsRune(name, filepath.Separator) || strings.HasSuffix(name, ".bin") {
		return name
	}
	return filepath.Join(lt.modelsDir, "ggml-"+name+".bin")
}

// LoadModel resolves the model file. whisper.cpp loads it on every run, so
// nothing stays resident between calls.
func (lt *LocalTranscriber) LoadModel(ctx context.Context, opts provider.ModelOptions) (provider.Model, error) {
	modelPath := lt.ModelPath(opts.Name)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperrors.Mark(&provider.TranscriptionError{
			Code:     "model_not_found",
			Message:  fmt.Sprintf("whisper.cpp model not found: %s", modelPath),
			Provider: providerName,
			Cause:    err,
		}, apperrors.ErrModelLoadFailed)
	}

	if opts.ComputeType != "" {
		zap.L().Debug("whisper.cpp takes precision from the model file, ignoring compute type",
			zap.String("compute_type", string(opts.ComputeType)))
	}

	return &localModel{
		lt:        lt,
		modelPath: modelPath,
		useGPU:    opts.Device != "" && opts.Device != "cpu",
	}, nil
}

type localModel struct {
	lt        *LocalTranscriber
	modelPath string
	useGPU    bool
}

// whisperOutput is the document written by whisper.cpp with -oj.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp to completion and serves its segments.
func (m *localModel) Transcribe(ctx context.Context, audioPath string, opts provider.DecodeOptions) (provider.SegmentReader, provider.Info, error) {
	lt := m.lt

	workDir, err := os.MkdirTemp(lt.tempDir, "whisper-cpp-")
	if err != nil {
		return nil, provider.Info{}, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	is16kHzWav, err := lt.tools.Is16kHzWav(ctx, audioPath)
	if err != nil {
		return nil, provider.Info{}, fmt.Errorf("error checking input file: %v", err)
	}

	inputPath := audioPath
	if !is16kHzWav {
		zap.L().Debug("input is not a 16kHz WAV file, converting", zap.String("path", audioPath))
		inputPath, err = lt.tools.ConvertTo16kHzWav(ctx, audioPath, workDir)
		if err != nil {
			return nil, provider.Info{}, fmt.Errorf("error converting input file: %v", err)
		}
	}

	outputBase := filepath.Join(workDir, "transcript-"+uuid.NewString())
	args := m.buildArgs(inputPath, outputBase, opts)

	command := exec.CommandContext(ctx, lt.binaryPath, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	zap.L().Debug("running whisper.cpp",
		zap.String("binary", lt.binaryPath),
		zap.Strings("args", args))

	if err := command.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, provider.Info{}, ctxErr
		}
		return nil, provider.Info{}, apperrors.Mark(&provider.TranscriptionError{
			Code:      "transcription_failed",
			Message:   fmt.Sprintf("command execution error: %v, stderr: %s", err, tail(stderr.String())),
			Provider:  providerName,
			Retryable: true,
			Cause:     err,
		}, apperrors.ErrTranscriptionFailed)
	}

	data, err := os.ReadFile(outputBase + ".json")
	if err != nil {
		return nil, provider.Info{}, apperrors.Mark(fmt.Errorf("failed to read output file: %v", err), apperrors.ErrTranscriptionFailed)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, provider.Info{}, apperrors.Mark(fmt.Errorf("failed to parse output file: %v", err), apperrors.ErrProtocol)
	}

	segments := make([]provider.Segment, 0, len(out.Transcription))
	for i, item := range out.Transcription {
		segments = append(segments, provider.Segment{
			ID:    i,
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  item.Text,
		})
	}

	info := provider.Info{Language: out.Result.Language}
	if d, err := lt.tools.Duration(ctx, audioPath); err == nil {
		info.Duration = d
	} else if len(segments) > 0 {
		info.Duration = segments[len(segments)-1].End
	}

	return provider.NewSliceReader(segments), info, nil
}

func (m *localModel) buildArgs(inputPath, outputBase string, opts provider.DecodeOptions) []string {
	language := opts.Language
	if language == "" {
		language = provider.AutoLanguage
	}

	args := []string{
		"-m", m.modelPath,
		"-f", inputPath,
		"-l", language,
		"-bs", strconv.Itoa(opts.BeamSize),
		"-oj",
		"-of", outputBase,
		"-np",
	}
	if m.lt.threads > 0 {
		args = append(args, "-t", strconv.Itoa(m.lt.threads))
	}
	if !m.useGPU {
		args = append(args, "-ng")
	}
	if opts.VADFilter && m.lt.vadModelPath != "" {
		args = append(args,
			"--vad",
			"-vm", m.lt.vadModelPath,
			"-vsd", strconv.Itoa(opts.MinSilenceDurationMs),
		)
	} else if opts.VADFilter {
		zap.L().Debug("VAD requested but no whisper.cpp VAD model configured, decoding without it")
	}
	return args
}

// Close implements provider.Model.
func (m *localModel) Close() error {
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ provider.Engine = (*LocalTranscriber)(nil)
