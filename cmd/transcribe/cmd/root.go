package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whisper-transcribe/internal/app/api/provider"
	"whisper-transcribe/internal/app/logging"
	"whisper-transcribe/internal/app/metrics"
	"whisper-transcribe/internal/app/model"
	"whisper-transcribe/internal/app/progress"
	"whisper-transcribe/internal/app/transcriber"
	"whisper-transcribe/internal/config"
)

// Version is overridden at build time with
// -ldflags "-X whisper-transcribe/cmd/transcribe/cmd.Version=...".
var Version = "v0.1.0"

// EngineFactory creates the engine selected by the configuration.
type EngineFactory func(name string, cfg *config.Config) (provider.Engine, error)

type options struct {
	model       string
	language    string
	computeType string

	engine      string
	configPath  string
	device      string
	metricsFile string
	progress    bool
	schema      bool
	verbose     bool
}

// app is one invocation of the command. stdout only ever receives the result
// document (or the output of a subcommand).
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	newEngine EngineFactory

	opts    options
	cfg     *config.Config
	engine  provider.Engine
	logger  *zap.Logger
	restore func()

	written bool
	failed  bool
}

// Execute runs the command with the process arguments and returns the exit
// code. SIGINT and SIGTERM cancel a running transcription.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes the command with args and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, newEngine: provider.NewEngine}
	return a.run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) int {
	defer func() {
		if a.restore != nil {
			a.restore()
		}
	}()

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !a.written {
			a.writeResult(model.FailureFromError(err))
		}
		return 1
	}
	if a.failed {
		return 1
	}
	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "transcribe <audio_path>",
		Short: "Transcribe an audio file and print the result as JSON",
		Long: `Transcribe an audio file with faster-whisper (or another configured engine)
and print exactly one line of JSON to stdout:

  {"success": true, "transcript": "...", "language": "en", "duration": 12.3}
  {"success": false, "error": "..."}

Progress messages go to stderr. The exit code is 0 on success and 1 on failure.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE:       a.prepare,
		RunE:          a.transcribe,
	}

	flags := root.Flags()
	flags.StringVar(&a.opts.model, "model", "base", "Whisper model name (tiny, base, small, medium, large-v3, ...)")
	flags.StringVar(&a.opts.language, "language", provider.AutoLanguage, "Language code or 'auto'")
	flags.StringVar(&a.opts.computeType, "compute-type", string(provider.ComputeInt8), "Compute type: float32, float16, int8, int8_float16")

	flags.StringVar(&a.opts.engine, "engine", defaults.Engine, "Transcription engine: faster_whisper, whisper_cpp, openai")
	flags.StringVar(&a.opts.configPath, "config", "", "YAML configuration file (default $"+config.EnvConfigFile+")")
	flags.StringVar(&a.opts.device, "device", defaults.Device, "Inference device, e.g. cpu or cuda")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	flags.BoolVar(&a.opts.progress, "progress", false, "Show a progress bar even when stderr is not a terminal")
	flags.BoolVar(&a.opts.schema, "schema", false, "Print the JSON Schema of the result document and exit")
	flags.BoolVarP(&a.opts.verbose, "verbose", "V", false, "verbose output")

	// No subcommands: every positional argument is an audio path, including
	// files named "help" or "version".
	return root
}

// audioPathArg reports argument errors the way the original command line did.
func audioPathArg(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0:
		return errors.New("the following arguments are required: audio_path")
	case len(args) > 1:
		return fmt.Errorf("unrecognized arguments: %s", strings.Join(args[1:], " "))
	}
	return nil
}

// prepare loads configuration and probes the engine before the positional
// arguments and the input file are looked at, so a missing engine is always
// reported first.
func (a *app) prepare(cmd *cobra.Command, args []string) error {
	if a.opts.schema {
		return nil
	}

	a.logger = logging.NewLogger(a.opts.verbose, a.stderr)
	a.restore = logging.Install(a.logger)

	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = a.opts.engine
	}
	if flags.Changed("device") {
		cfg.Device = a.opts.device
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	engine, err := a.newEngine(cfg.Engine, cfg)
	if err != nil {
		return err
	}
	a.logger.Debug("probing engine", zap.String("engine", engine.Name()))
	if err := engine.Probe(cmd.Context()); err != nil {
		return err
	}
	a.engine = engine
	return audioPathArg(cmd, args)
}

func (a *app) transcribe(cmd *cobra.Command, args []string) error {
	if a.opts.schema {
		return a.printSchema(cmd)
	}

	var m *metrics.ProviderMetrics
	if a.cfg.MetricsFile != "" {
		m = metrics.NewProviderMetrics()
	}

	pm := progress.NewProgressManager(progress.ProgressConfig{
		Enabled: progress.ShouldShow(a.opts.progress, stderrFile(a.stderr)),
		Writer:  a.stderr,
	})

	svc := transcriber.NewService(a.engine, transcriber.ServiceConfig{
		Device:       a.cfg.Device,
		DownloadRoot: a.cfg.FasterWhisper.DownloadRoot,
		Decode:       a.cfg.Decode,
		Logger:       a.logger,
		Metrics:      m,
		Progress:     pm,
	})

	result := svc.Transcribe(cmd.Context(), transcriber.Request{
		AudioPath:   args[0],
		Model:       a.opts.model,
		Language:    a.opts.language,
		ComputeType: provider.ComputeType(a.opts.computeType),
	})
	pm.Wait()

	if m != nil {
		if err := m.WriteToTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("failed to write metrics", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
		}
	}

	a.writeResult(result)
	if !result.Success {
		a.failed = true
	}
	return nil
}

func (a *app) printSchema(cmd *cobra.Command) error {
	data, err := model.SchemaJSON()
	if err != nil {
		return err
	}
	a.written = true
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func (a *app) writeResult(result model.Result) {
	a.written = true
	if _, err := result.WriteTo(a.stdout); err != nil && a.logger != nil {
		a.logger.Error("failed to write result", zap.Error(err))
	}
}

func stderrFile(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
