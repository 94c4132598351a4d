package audio

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
)

// Toolchain locates the ffmpeg binaries used for probing and resampling.
type Toolchain struct {
	FFmpeg  string
	FFprobe string
}

// DefaultToolchain resolves ffmpeg and ffprobe from PATH.
func DefaultToolchain() Toolchain {
	return Toolchain{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate int    `json:"sample_rate,string"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Duration returns the container duration of filePath in seconds.
func (tc Toolchain) Duration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, tc.FFprobe, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

// Is16kHzWav reports whether filePath already holds 16 kHz PCM s16le audio,
// the only input whisper.cpp reads directly.
func (tc Toolchain) Is16kHzWav(ctx context.Context, filePath string) (bool, error) {
	cmd := exec.CommandContext(ctx, tc.FFprobe, "-v", "quiet", "-print_format", "json", "-show_streams", filePath)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe streams: %w", err)
	}

	var probeOutput ffprobeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return false, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, stream := range probeOutput.Streams {
		if stream.CodecType == "audio" && stream.CodecName == "pcm_s16le" && stream.SampleRate == 16000 {
			return true, nil
		}
	}
	return false, nil
}

// ConvertTo16kHzWav resamples inputPath into a mono 16 kHz WAV file inside
// outputDir and returns its path. The caller owns the returned file.
func (tc Toolchain) ConvertTo16kHzWav(ctx context.Context, inputPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create conversion directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s_16khz_%s.wav", base, uuid.NewString()[:8]))

	zap.L().Debug("converting to 16kHz wav",
		zap.String("input", inputPath),
		zap.String("output", outputPath))

	cmd := exec.CommandContext(ctx, tc.FFmpeg, "-nostdin", "-y", "-i", inputPath, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("FFmpeg error: %v, stderr: %s", err, lastLine(stderr.String()))
	}

	return outputPath, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
