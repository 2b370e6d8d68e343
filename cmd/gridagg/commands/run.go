// Package commands implements CLI command handlers for gridagg.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gridagg/pkg/config"
	"github.com/Sumatoshi-tech/gridagg/pkg/grid"
	"github.com/Sumatoshi-tech/gridagg/pkg/observability"
	"github.com/Sumatoshi-tech/gridagg/pkg/pipeline"
	"github.com/Sumatoshi-tech/gridagg/pkg/rank"
	"github.com/Sumatoshi-tech/gridagg/pkg/report"
	"github.com/Sumatoshi-tech/gridagg/pkg/version"
)

const (
	flagVerbose = "verbose"
	flagLogJSON = "log-json"
)

type pipelineRunner func(ctx context.Context, opts pipeline.Options, deps pipeline.Deps) (pipeline.Result, error)

type observabilityInit func(cfg observability.Config) (observability.Providers, error)

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	configPath string
	inputPath  string
	inputDir   string
	outputDir  string
	sortBy     string
	extremal   string
	format     string
	limit      int
	compress   bool
	gnuplot    bool
	noHTML     bool
	verify     bool
	silent     bool
	noColor    bool

	runner  pipelineRunner
	initObs observabilityInit
}

// AddPersistentFlags registers the logging flags shared by every command.
func AddPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "debug logging")
	root.PersistentFlags().Bool(flagLogJSON, false, "JSON log output")
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(pipeline.Run, observability.Init)
}

func newRunCommandWithDeps(runner pipelineRunner, initObs observabilityInit) *cobra.Command {
	rc := &RunCommand{runner: runner, initObs: initObs}

	cmd := &cobra.Command{
		Use:   "run [flags] <hvb|hva|lv> <comp|indiv|all> <plant-id>",
		Short: "Aggregate one tier/consumer selection",
		Long: `Build the station index from tmp/filter_<tier>_<consumer>[_<plant>].csv and
write output/sorted_<tier>_<consumer>.csv. lv/all runs also write the top and
bottom stations by capacity minus consumption and a chart of them.
Use -1 as plant-id for every plant. Flags go before the positional arguments.`,
		Args: cobra.ExactArgs(3),
		RunE: rc.run,
	}

	// Plant id -1 must reach Args rather than be parsed as a shorthand flag.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().StringVar(&rc.configPath, "config", "", "Config file (default: gridagg.yaml in ., ./config, /etc/gridagg)")
	cmd.Flags().StringVar(&rc.inputPath, "input", "", "Input file (overrides the path derived from --input-dir)")
	cmd.Flags().StringVar(&rc.inputDir, "input-dir", config.DefaultInputDirectory, "Directory holding filter_*.csv files")
	cmd.Flags().StringVar(&rc.outputDir, "output-dir", config.DefaultOutputDirectory, "Output directory")
	cmd.Flags().StringVar(&rc.sortBy, "sort", rank.MetricNameCapacity, "Sorted report order: capacity, difference")
	cmd.Flags().IntVar(&rc.limit, "limit", config.DefaultLimit, "Number of stations in the top and bottom reports")
	cmd.Flags().StringVar(&rc.extremal, "extremal", config.ExtremalAuto, "Top/bottom reports: auto (lv/all only), always, never")
	cmd.Flags().StringVar(&rc.format, "format", report.FormatLines, "Sorted report format: lines, json, yaml")
	cmd.Flags().BoolVar(&rc.compress, "compress", false, "LZ4-compress report files")
	cmd.Flags().BoolVar(&rc.gnuplot, "gnuplot", false, "Run gnuplot on the generated script")
	cmd.Flags().BoolVar(&rc.noHTML, "no-html", false, "Skip the HTML chart")
	cmd.Flags().BoolVar(&rc.verify, "verify", false, "Verify index invariants after the build phase")
	cmd.Flags().BoolVar(&rc.silent, "silent", false, "Disable the terminal summary")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored summary output")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) (err error) {
	sel, err := grid.NewSelection(args[0], args[1], args[2])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	rc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	providers, err := rc.initObs(observabilityConfig(cmd, cfg))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx := cmd.Context()

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	logger := providers.Logger
	readiness := &observability.Readiness{}

	if addr := cfg.Telemetry.DiagnosticsAddr; addr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(ctx, addr, providers.MetricsHandler, logger, readiness.Check)
		if diagErr != nil {
			return diagErr
		}

		defer func() { err = errors.Join(err, diag.Close(context.WithoutCancel(ctx))) }()

		logger.InfoContext(ctx, "diagnostics listening", "addr", diag.Addr())
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("pipeline metrics: %w", err)
	}

	opts, err := pipeline.OptionsFromConfig(sel, cfg)
	if err != nil {
		return err
	}

	opts.InputPath = rc.inputPath
	opts.Verify = rc.verify

	logger.InfoContext(ctx, "run started",
		"tier", sel.Tier, "consumer", sel.Consumer, "plant", sel.PlantID)

	res, err := rc.runner(ctx, opts, pipeline.Deps{
		Logger:  logger,
		Tracer:  providers.Tracer,
		Metrics: metrics,
		PhaseDone: func(phase string) {
			if phase == pipeline.PhaseBuild {
				readiness.MarkReady()
			}
		},
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "run completed", "stations", res.Stations, "files", len(res.Files))

	if rc.silent {
		return nil
	}

	return report.RenderSummary(cmd.OutOrStdout(), report.Summary{
		Tier:     string(sel.Tier),
		Consumer: string(sel.Consumer),
		Lines:    res.Stats.Lines,
		Skipped:  res.Stats.Skipped,
		Stations: res.Stations,
		Files:    res.Files,
		Top:      res.Top,
		Bottom:   res.Bottom,
	}, rc.noColor)
}

// applyFlags overrides configuration values with the flags set on the command line.
func (rc *RunCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("input-dir") {
		cfg.Input.Directory = rc.inputDir
	}

	if flags.Changed("output-dir") {
		cfg.Output.Directory = rc.outputDir
	}

	if flags.Changed("sort") {
		cfg.Report.SortBy = rc.sortBy
	}

	if flags.Changed("limit") {
		cfg.Report.Limit = rc.limit
	}

	if flags.Changed("extremal") {
		cfg.Report.Extremal = rc.extremal
	}

	if flags.Changed("format") {
		cfg.Output.Format = rc.format
	}

	if flags.Changed("compress") {
		cfg.Output.Compress = rc.compress
	}

	if flags.Changed("gnuplot") {
		cfg.Plot.Gnuplot = rc.gnuplot
	}

	if flags.Changed("no-html") {
		cfg.Plot.HTML = !rc.noHTML
	}

	if verbose, _ := flags.GetBool(flagVerbose); verbose {
		cfg.Logging.Level = "debug"
	}

	if logJSON, _ := flags.GetBool(flagLogJSON); logJSON {
		cfg.Logging.Format = config.LogFormatJSON
	}
}

func observabilityConfig(cmd *cobra.Command, cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.Prometheus = cfg.Telemetry.DiagnosticsAddr != ""
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogOutput = cmd.ErrOrStderr()

	return obsCfg
}
