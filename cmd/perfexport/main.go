// Package main provides the CLI entry point for perfexport, which turns
// captured inference benchmark telemetry into a portable profile export.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/weiihann/perfexport/collector"
	"github.com/weiihann/perfexport/config"
	"github.com/weiihann/perfexport/influx"
	"github.com/weiihann/perfexport/profile"
	"github.com/weiihann/perfexport/report"
	"github.com/weiihann/perfexport/synth"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := newRootCmd(logger, level, os.Stdout)
	err := root.ExecuteContext(ctx)
	stop()

	if err != nil {
		logger.Error("perfexport failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar, stdout io.Writer) *cobra.Command {
	var global globalFlags

	root := &cobra.Command{
		Use:   "perfexport",
		Short: "Export inference benchmark telemetry as a profile document",
		Long: `Perfexport converts the per-request telemetry captured during an
inference benchmark run into a single JSON profile export: request and
response timestamps, decoded request inputs and response outputs, load
mode and window boundaries for every experiment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if global.verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.SetOut(stdout)

	pf := root.PersistentFlags()
	pf.StringVar(&global.configPath, "config", "",
		"Path to YAML config file")
	pf.BoolVarP(&global.verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(
		newExportCmd(logger, &global),
		newRunCmd(logger, &global),
		newSynthCmd(logger, &global, stdout),
		newSummaryCmd(stdout),
	)

	return root
}

// exportFlags are the flags shared by every command that writes a profile
// export. Flags override config file and environment values when set.
type exportFlags struct {
	output          string
	versionString   string
	serviceKind     string
	endpoint        string
	indent          bool
	metricsTextfile string
	influx          bool
}

func bindExportFlags(cmd *cobra.Command, f *exportFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "",
		"Profile export path (default: profile_export-<run id>.json)")
	flags.StringVar(&f.versionString, "version-string", "",
		"Tool version recorded in the export")
	flags.StringVar(&f.serviceKind, "service-kind", "",
		"Service kind: triton, tfserving, torchserve, triton_c_api, openai")
	flags.StringVar(&f.endpoint, "endpoint", "",
		"Endpoint recorded in the export")
	flags.BoolVar(&f.indent, "indent", false,
		"Pretty-print the export")
	flags.StringVar(&f.metricsTextfile, "metrics-textfile", "",
		"Write exporter metrics to this file in Prometheus text format")
	flags.BoolVar(&f.influx, "influx", false,
		"Publish request and response samples to InfluxDB")
}

func loadConfig(cmd *cobra.Command, global *globalFlags, f *exportFlags) (*config.Config, error) {
	cfg, err := config.Load(global.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if f == nil {
		return cfg, nil
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("version-string") {
		cfg.Version = f.versionString
	}
	if flags.Changed("service-kind") {
		cfg.ServiceKind = f.serviceKind
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = f.endpoint
	}
	if flags.Changed("indent") {
		cfg.Indent = f.indent
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = f.metricsTextfile
	}
	if flags.Changed("influx") {
		cfg.Influx.Enabled = f.influx
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	return cfg, nil
}

func newExportCmd(logger *slog.Logger, global *globalFlags) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export <snapshot>",
		Short: "Export a captured snapshot as a profile document",
		Long: `Read a telemetry snapshot written by a load generator (JSON, or
snappy compressed when the name ends in .sz) and write the profile export.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, &flags)
			if err != nil {
				return err
			}

			experiments, err := collector.Load(args[0])
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			return exportExperiments(cmd.Context(), logger, cfg, experiments)
		},
	}

	bindExportFlags(cmd, &flags)

	return cmd
}

func newRunCmd(logger *slog.Logger, global *globalFlags) *cobra.Command {
	var (
		flags   exportFlags
		dir     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run -- <generator> [args...]",
		Short: "Run a load generator and export what it captured",
		Long: `Run an external load generator that prints a telemetry snapshot on
stdout, then write the profile export. Python scripts run under python3 and
jars under java -jar.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, &flags)
			if err != nil {
				return err
			}

			cmdCfg := collector.WrapCommand(args[0])
			runner := collector.NewRunner(
				collector.GeneratorName(args[0]),
				cmdCfg.Binary, cmdCfg.ExtraArgs, cmdCfg.Env, logger,
			)

			experiments, err := runner.Run(cmd.Context(), collector.RunConfig{
				Args:    args[1:],
				Dir:     dir,
				Timeout: timeout,
			})
			if err != nil {
				return fmt.Errorf("run generator: %w", err)
			}

			return exportExperiments(cmd.Context(), logger, cfg, experiments)
		},
	}

	bindExportFlags(cmd, &flags)
	cmd.Flags().StringVar(&dir, "dir", "",
		"Working directory for the generator")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute,
		"Maximum generator run time")

	return cmd
}

func newSynthCmd(logger *slog.Logger, global *globalFlags, stdout io.Writer) *cobra.Command {
	var (
		output       string
		concurrency  []uint
		requestRates []float64
		requests     int
		maxResponses int
		promptWords  int
		windows      int
		sequenced    bool
		arrival      string
		seed         int64
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic telemetry snapshot",
		Long: `Generate a deterministic synthetic snapshot with streamed responses
and typed inputs. The same seed always produces the same snapshot.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}

			s := cfg.Synth
			flags := cmd.Flags()
			if flags.Changed("concurrency") || flags.Changed("request-rates") {
				s.Concurrency = make([]uint64, len(concurrency))
				for i, c := range concurrency {
					s.Concurrency[i] = uint64(c)
				}
				s.RequestRates = requestRates
			}
			if flags.Changed("requests") {
				s.Requests = requests
			}
			if flags.Changed("max-responses") {
				s.MaxResponses = maxResponses
			}
			if flags.Changed("prompt-words") {
				s.PromptWords = promptWords
			}
			if flags.Changed("windows") {
				s.Windows = windows
			}
			if flags.Changed("sequenced") {
				s.Sequenced = sequenced
			}
			if flags.Changed("arrival") {
				s.Arrival = arrival
			}
			if flags.Changed("seed") {
				s.Seed = seed
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			if s.Seed == 0 {
				s.Seed = time.Now().UnixNano()
			}

			return generateSnapshot(cmd.Context(), logger, stdout, output, s)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "",
		"Snapshot path, .sz for snappy compression (default: stdout)")
	flags.UintSliceVar(&concurrency, "concurrency", nil,
		"Concurrency levels, one experiment each")
	flags.Float64SliceVar(&requestRates, "request-rates", nil,
		"Request rates per second, one experiment each")
	flags.IntVar(&requests, "requests", config.DefaultSynthRequests,
		"Requests per experiment")
	flags.IntVar(&maxResponses, "max-responses", config.DefaultSynthMaxResponses,
		"Maximum streamed response chunks per request")
	flags.IntVar(&promptWords, "prompt-words", config.DefaultSynthPromptWords,
		"Average prompt length in words")
	flags.IntVar(&windows, "windows", config.DefaultSynthWindows,
		"Measurement windows per experiment")
	flags.BoolVar(&sequenced, "sequenced", false,
		"Assign sequence ids to requests")
	flags.StringVar(&arrival, "arrival", config.DefaultSynthArrival,
		"Request-rate arrivals: poisson, uniform, constant")
	flags.Int64Var(&seed, "seed", 0,
		"Random seed (0 = use current time)")

	return cmd
}

func newSummaryCmd(stdout io.Writer) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summary <snapshot>",
		Short: "Summarize a captured snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			experiments, err := collector.Load(args[0])
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			switch format {
			case "markdown":
				if err := report.Generate(stdout, experiments); err != nil {
					return fmt.Errorf("generate report: %w", err)
				}
			case "json":
				if err := report.GenerateJSON(stdout, experiments); err != nil {
					return fmt.Errorf("generate JSON report: %w", err)
				}
			case "text":
				report.Render(stdout, experiments)
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text",
		"Output format: text, markdown, json")

	return cmd
}

func exportExperiments(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	experiments []profile.Experiment,
) error {
	runID := ulid.Make().String()
	logger = logger.With(slog.String("run_id", runID))

	output := cfg.Output
	if output == "" {
		output = "profile_export-" + runID + ".json"
	}

	var opts []profile.WriteOption
	if cfg.Indent {
		opts = append(opts, profile.WithIndent("", "  "))
	}

	reg := prometheus.NewRegistry()
	exporter := profile.NewExporter(logger, profile.NewMetrics(reg), opts...)

	meta := profile.Metadata{
		Version:     cfg.Version,
		ServiceKind: cfg.Kind(),
		Endpoint:    cfg.Endpoint,
	}

	if err := exporter.Export(ctx, experiments, meta, output); err != nil {
		return fmt.Errorf("export profile: %w", err)
	}

	if cfg.Influx.Enabled {
		if err := publishSamples(ctx, logger, cfg.Influx, runID, experiments); err != nil {
			return err
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, reg); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}

	return nil
}

func publishSamples(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.InfluxConfig,
	runID string,
	experiments []profile.Experiment,
) error {
	w, err := influx.NewWriter(influx.Config{
		Host:      cfg.Host,
		Token:     cfg.Token,
		Database:  cfg.Database,
		BatchSize: cfg.BatchSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect influx: %w", err)
	}
	defer w.Close()

	if err := w.Write(ctx, influx.Samples(runID, experiments)); err != nil {
		return fmt.Errorf("publish samples: %w", err)
	}

	return nil
}

func generateSnapshot(
	ctx context.Context,
	logger *slog.Logger,
	stdout io.Writer,
	output string,
	s config.SynthConfig,
) error {
	gen := synth.NewGenerator(synth.Config{
		Concurrency:           s.Concurrency,
		RequestRates:          s.RequestRates,
		RequestsPerExperiment: s.Requests,
		MaxResponses:          s.MaxResponses,
		PromptWords:           s.PromptWords,
		Windows:               s.Windows,
		Sequenced:             s.Sequenced,
		Arrival:               s.Arrival,
		Seed:                  s.Seed,
	})

	var (
		summary synth.Summary
		err     error
	)

	if output == "" {
		summary, err = gen.WriteSnapshot(stdout)
	} else {
		var experiments []profile.Experiment
		experiments, summary = gen.Generate()
		err = collector.Save(output, experiments)
	}

	if err != nil {
		return fmt.Errorf("generate snapshot: %w", err)
	}

	logger.InfoContext(ctx, "snapshot generated",
		slog.String("path", output),
		slog.Int64("seed", s.Seed),
		slog.Int("experiments", summary.Experiments),
		slog.Int("requests", summary.Requests),
		slog.Int("responses", summary.Responses),
		slog.Int("fields", summary.Fields),
	)

	return nil
}
