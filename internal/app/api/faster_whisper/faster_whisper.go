package faster_whisper

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whisper-transcribe/internal/app/api/provider"
	apperrors "whisper-transcribe/internal/app/errors"
)

const providerName = "faster_whisper"

// maxLineSize bounds a single worker message. Segments are short; this only
// needs to fit the longest error text faster-whisper can produce.
const maxLineSize = 1 << 20

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the worker itself has exited.
const waitDelay = 2 * time.Second

//go:embed assets/worker.py
var workerScript []byte

// Engine drives faster-whisper through a Python worker process. The worker
// speaks newline-delimited JSON on stdout, see assets/worker.py.
type Engine struct {
	python       string
	downloadRoot string
	tempDir      string
}

// NewEngine creates an engine that runs the worker with the given interpreter.
func NewEngine(python, downloadRoot string) *Engine {
	if python == "" {
		python = "python3"
	}
	return &Engine{
		python:       python,
		downloadRoot: downloadRoot,
		tempDir:      os.TempDir(),
	}
}

// Name implements provider.Engine.
func (e *Engine) Name() string {
	return providerName
}

// Probe runs the worker in probe mode, which only checks that faster_whisper
// can be imported.
func (e *Engine) Probe(ctx context.Context) error {
	script, cleanup, err := e.writeWorker()
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, e.python, script, "--probe")
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, runErr := cmd.Output()

	msg, parseErr := decodeMessage(firstLine(out))
	switch {
	case parseErr == nil && msg.Type == msgError:
		return apperrors.Unavailable(errors.New(msg.Message))
	case runErr == nil && parseErr == nil && msg.Type == msgReady:
		return nil
	case errors.Is(runErr, exec.ErrNotFound):
		return apperrors.Unavailable(fmt.Errorf("python interpreter %q not found; faster-whisper requires Python 3", e.python))
	case runErr != nil:
		return apperrors.Unavailable(fmt.Errorf("faster-whisper probe failed: %v%s", runErr, stderrSuffix(&stderr)))
	default:
		return apperrors.Unavailable(fmt.Errorf("faster-whisper probe returned unexpected output: %q", strings.TrimSpace(string(out))))
	}
}

// LoadModel starts a worker and waits until it reports the model as loaded.
func (e *Engine) LoadModel(ctx context.Context, opts provider.ModelOptions) (provider.Model, error) {
	script, cleanup, err := e.writeWorker()
	if err != nil {
		return nil, err
	}

	args := []string{
		script,
		"--model", opts.Name,
		"--device", opts.Device,
		"--compute-type", string(opts.ComputeType),
	}
	downloadRoot := opts.DownloadRoot
	if downloadRoot == "" {
		downloadRoot = e.downloadRoot
	}
	if downloadRoot != "" {
		args = append(args, "--download-root", downloadRoot)
	}

	cmd := exec.CommandContext(ctx, e.python, args...)
	cmd.Env = os.Environ()
	cmd.WaitDelay = waitDelay
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create worker stdout: %w", err)
	}

	zap.L().Debug("starting faster-whisper worker",
		zap.String("python", e.python),
		zap.Strings("args", args[1:]))

	if err := cmd.Start(); err != nil {
		cleanup()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperrors.Unavailable(fmt.Errorf("python interpreter %q not found", e.python))
		}
		return nil, fmt.Errorf("start faster-whisper worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	m := &workerModel{
		ctx:     ctx,
		cmd:     cmd,
		stdin:   stdin,
		scanner: scanner,
		stderr:  stderr,
		cleanup: cleanup,
	}

	msg, err := m.read()
	if err != nil {
		m.finished = true
		m.Close()
		err = m.exitError("faster-whisper worker exited before loading the model", err)
		if m.ctxErr() != nil {
			return nil, err
		}
		return nil, apperrors.Mark(err, apperrors.ErrModelLoadFailed)
	}
	switch msg.Type {
	case msgReady:
		return m, nil
	case msgError:
		m.finished = true
		m.Close()
		return nil, apperrors.Mark(&provider.TranscriptionError{
			Code:     "model_load_failed",
			Message:  msg.Message,
			Provider: providerName,
		}, apperrors.ErrModelLoadFailed)
	default:
		m.Close()
		return nil, apperrors.Mark(fmt.Errorf("expected ready message from worker, got %q", msg.Type), apperrors.ErrProtocol)
	}
}

// writeWorker materializes the embedded worker under a unique name.
func (e *Engine) writeWorker() (string, func(), error) {
	path := filepath.Join(e.tempDir, fmt.Sprintf("transcribe-worker-%s.py", uuid.NewString()))
	if err := os.WriteFile(path, workerScript, 0o600); err != nil {
		return "", func() {}, fmt.Errorf("write worker script: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}

// workerModel is a loaded model living in a worker process. One worker serves
// one transcription.
type workerModel struct {
	// ctx bounds the worker process; streamCtx is the context of the running
	// transcription, which kills the worker when it is done.
	ctx       context.Context
	streamCtx context.Context
	stopWatch func() bool

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	cleanup func()

	mu       sync.Mutex
	started  bool
	finished bool
	closed   bool

	waitOnce sync.Once
	waitErr  error
}

type request struct {
	AudioPath            string `json:"audio_path"`
	Language             string `json:"language,omitempty"`
	BeamSize             int    `json:"beam_size"`
	VADFilter            bool   `json:"vad_filter"`
	MinSilenceDurationMs int    `json:"min_silence_duration_ms"`
}

// Transcribe sends the request and waits for the info message. Segments are
// read on demand by the returned reader.
func (m *workerModel) Transcribe(ctx context.Context, audioPath string, opts provider.DecodeOptions) (provider.SegmentReader, provider.Info, error) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil, provider.Info{}, fmt.Errorf("faster-whisper worker already used for a transcription")
	}
	m.started = true
	m.streamCtx = ctx
	m.stopWatch = context.AfterFunc(ctx, m.kill)
	m.mu.Unlock()

	payload, err := json.Marshal(request{
		AudioPath:            audioPath,
		Language:             opts.Language,
		BeamSize:             opts.BeamSize,
		VADFilter:            opts.VADFilter,
		MinSilenceDurationMs: opts.MinSilenceDurationMs,
	})
	if err != nil {
		return nil, provider.Info{}, fmt.Errorf("encode worker request: %w", err)
	}
	if _, err := m.stdin.Write(append(payload, '\n')); err != nil {
		return nil, provider.Info{}, m.exitError("send request to faster-whisper worker", err)
	}
	m.stdin.Close()

	msg, err := m.read()
	if err != nil {
		m.finished = true
		return nil, provider.Info{}, m.exitError("faster-whisper worker exited before reporting audio info", err)
	}
	switch msg.Type {
	case msgInfo:
		return &segmentStream{model: m}, msg.info(), nil
	case msgError:
		m.finished = true
		return nil, provider.Info{}, apperrors.Mark(&provider.TranscriptionError{
			Code:     "transcription_failed",
			Message:  msg.Message,
			Provider: providerName,
		}, apperrors.ErrTranscriptionFailed)
	default:
		return nil, provider.Info{}, apperrors.Mark(fmt.Errorf("expected info message from worker, got %q", msg.Type), apperrors.ErrProtocol)
	}
}

// Close stops the worker. A worker that has not finished its stream is killed.
func (m *workerModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	defer m.cleanup()
	if m.stopWatch != nil {
		m.stopWatch()
	}

	if err := m.reap(m.started && !m.finished); err != nil && m.finished {
		zap.L().Debug("faster-whisper worker exited", zap.Error(err))
	}
	return nil
}

// reap waits for the worker exactly once. stderr is only safe to read after
// reap returns.
func (m *workerModel) reap(kill bool) error {
	m.waitOnce.Do(func() {
		m.stdin.Close()
		if kill {
			m.kill()
		}
		m.waitErr = m.cmd.Wait()
	})
	return m.waitErr
}

func (m *workerModel) kill() {
	if m.cmd.Process != nil {
		m.cmd.Process.Kill()
	}
}

// ctxErr reports why the worker was stopped by a context, if it was.
func (m *workerModel) ctxErr() error {
	if err := m.ctx.Err(); err != nil {
		return err
	}
	if m.streamCtx != nil {
		return m.streamCtx.Err()
	}
	return nil
}

// read returns the next worker message. Once a context has stopped the
// worker its error is returned instead of whatever the broken pipe reports.
func (m *workerModel) read() (message, error) {
	if !m.scanner.Scan() {
		if err := m.ctxErr(); err != nil {
			return message{}, err
		}
		if err := m.scanner.Err(); err != nil {
			return message{}, err
		}
		return message{}, io.ErrUnexpectedEOF
	}
	return decodeMessage(m.scanner.Bytes())
}

// exitError stops the worker and describes the failure with the last line
// the worker wrote to stderr. A cancelled context is returned as is.
func (m *workerModel) exitError(what string, err error) error {
	m.reap(true)
	if ctxErr := m.ctxErr(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %v%s", what, err, stderrSuffix(m.stderr))
}

// segmentStream reads segment messages until the worker reports the end.
type segmentStream struct {
	model *workerModel
	done  bool
	err   error
}

// Next implements provider.SegmentReader.
func (s *segmentStream) Next() (provider.Segment, error) {
	if s.done {
		if s.err != nil {
			return provider.Segment{}, s.err
		}
		return provider.Segment{}, io.EOF
	}

	msg, err := s.model.read()
	if err != nil {
		return provider.Segment{}, s.fail(s.model.exitError("faster-whisper worker stopped mid-stream", err))
	}

	switch msg.Type {
	case msgSegment:
		return msg.segment(), nil
	case msgEnd:
		s.done = true
		s.model.finished = true
		return provider.Segment{}, io.EOF
	case msgError:
		return provider.Segment{}, s.fail(apperrors.Mark(&provider.TranscriptionError{
			Code:     "transcription_failed",
			Message:  msg.Message,
			Provider: providerName,
		}, apperrors.ErrTranscriptionFailed))
	default:
		return provider.Segment{}, s.fail(apperrors.Mark(fmt.Errorf("unexpected worker message %q", msg.Type), apperrors.ErrProtocol))
	}
}

// Close implements provider.SegmentReader.
func (s *segmentStream) Close() error {
	s.done = true
	return nil
}

func (s *segmentStream) fail(err error) error {
	s.done = true
	s.err = err
	s.model.finished = true
	return err
}

func stderrSuffix(stderr *bytes.Buffer) string {
	text := strings.TrimSpace(stderr.String())
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	return ": " + strings.TrimSpace(lines[len(lines)-1])
}

func firstLine(out []byte) []byte {
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		return out[:i]
	}
	return out
}
