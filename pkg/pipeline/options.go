// Package pipeline runs one aggregation job end to end: build the index from
// a filtered station file, materialize it, rank, serialize and plot.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/gridagg/pkg/config"
	"github.com/Sumatoshi-tech/gridagg/pkg/grid"
	"github.com/Sumatoshi-tech/gridagg/pkg/observability"
	"github.com/Sumatoshi-tech/gridagg/pkg/rank"
	"github.com/Sumatoshi-tech/gridagg/pkg/report"
)

// ErrInvalidOptions is returned when Options cannot describe a run.
var ErrInvalidOptions = errors.New("invalid pipeline options")

const outputDirPerm = 0o750

// Options describes one run.
type Options struct {
	Selection grid.Selection

	// InputPath overrides the path derived from InputDir and Selection.
	InputPath string
	InputDir  string
	OutputDir string
	Delimiter string

	SortBy   rank.Metric
	Limit    int
	Extremal string
	Format   string
	Compress bool

	HTML          bool
	Gnuplot       bool
	GnuplotBinary string

	// Verify checks the index invariants after the build phase.
	Verify bool
}

// OptionsFromConfig fills Options from a loaded configuration.
func OptionsFromConfig(sel grid.Selection, cfg *config.Config) (Options, error) {
	metric, err := rank.ParseMetric(cfg.Report.SortBy)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	return Options{
		Selection:     sel,
		InputDir:      cfg.Input.Directory,
		OutputDir:     cfg.Output.Directory,
		Delimiter:     cfg.Input.Delimiter,
		SortBy:        metric,
		Limit:         cfg.Report.Limit,
		Extremal:      cfg.Report.Extremal,
		Format:        cfg.Output.Format,
		Compress:      cfg.Output.Compress,
		HTML:          cfg.Plot.HTML,
		Gnuplot:       cfg.Plot.Gnuplot,
		GnuplotBinary: cfg.Plot.GnuplotBinary,
	}, nil
}

func (o Options) validate() error {
	err := o.Selection.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	if o.Delimiter == "" {
		return fmt.Errorf("%w: empty delimiter", ErrInvalidOptions)
	}

	if o.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidOptions, o.Limit)
	}

	if o.Format != "" && !report.ValidFormat(o.Format) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidOptions, report.ErrUnknownFormat, o.Format)
	}

	switch o.Extremal {
	case "", config.ExtremalAuto, config.ExtremalAlways, config.ExtremalNever:
	default:
		return fmt.Errorf("%w: extremal mode %q", ErrInvalidOptions, o.Extremal)
	}

	return nil
}

// extremal reports whether top and bottom reports are produced.
func (o Options) extremal() bool {
	switch o.Extremal {
	case config.ExtremalAlways:
		return true
	case config.ExtremalNever:
		return false
	default:
		return o.Selection.Extremal()
	}
}

func (o Options) inputPath() string {
	if o.InputPath != "" {
		return o.InputPath
	}

	return o.Selection.InputFile(o.InputDir)
}

// Deps carries the observability collaborators of a run. Zero fields fall
// back to no-op implementations.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics

	// PhaseDone, when set, is called after each phase that succeeds.
	PhaseDone func(phase string)
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}

	if d.Tracer == nil {
		d.Tracer = nooptrace.NewTracerProvider().Tracer("gridagg")
	}

	if d.Metrics == nil {
		m, err := observability.NewPipelineMetrics(noopmetric.NewMeterProvider().Meter("gridagg"))
		if err != nil {
			return d, err
		}

		d.Metrics = m
	}

	return d, nil
}
