package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gridagg/pkg/avl"
	"github.com/Sumatoshi-tech/gridagg/pkg/chart"
	"github.com/Sumatoshi-tech/gridagg/pkg/ingest"
	"github.com/Sumatoshi-tech/gridagg/pkg/rank"
	"github.com/Sumatoshi-tech/gridagg/pkg/report"
	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

// Phase names, used for spans and the phase duration histogram.
const (
	PhaseBuild     = "build"
	PhaseVerify    = "verify"
	PhaseCollect   = "collect"
	PhaseRank      = "rank"
	PhaseSerialize = "serialize"
	PhasePlot      = "plot"
)

// Result describes a completed run.
type Result struct {
	Stats    ingest.Stats
	Stations int

	// Records holds every station in the order of the sorted report.
	Records []station.Record
	Top     []station.Record
	Bottom  []station.Record

	// Files lists every file written, in write order.
	Files []string
}

type runner struct {
	opts Options
	deps Deps
	res  Result
}

// Run executes the pipeline. The index lives only for the duration of the call.
func Run(ctx context.Context, opts Options, deps Deps) (Result, error) {
	err := opts.validate()
	if err != nil {
		return Result{}, err
	}

	deps, err = deps.withDefaults()
	if err != nil {
		return Result{}, fmt.Errorf("pipeline metrics: %w", err)
	}

	sel := opts.Selection

	ctx, span := deps.Tracer.Start(ctx, "gridagg.run", trace.WithAttributes(
		attribute.String("tier", string(sel.Tier)),
		attribute.String("consumer", string(sel.Consumer)),
		attribute.Int("plant_id", sel.PlantID),
	))
	defer span.End()

	r := &runner{opts: opts, deps: deps}

	err = r.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return r.res, err
	}

	return r.res, nil
}

func (r *runner) run(ctx context.Context) error {
	err := os.MkdirAll(r.opts.OutputDir, outputDirPerm)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	idx := avl.New()
	defer idx.Release()

	err = r.phase(ctx, PhaseBuild, func(ctx context.Context) error { return r.build(ctx, idx) })
	if err != nil {
		return err
	}

	if r.opts.Verify {
		err = r.phase(ctx, PhaseVerify, func(context.Context) error { return idx.Verify() })
		if err != nil {
			return err
		}
	}

	err = r.phase(ctx, PhaseCollect, func(context.Context) error {
		r.res.Records = station.Collect(idx)

		return nil
	})
	if err != nil {
		return err
	}

	err = r.phase(ctx, PhaseRank, func(context.Context) error {
		if r.opts.extremal() {
			r.res.Top, r.res.Bottom = rank.TopAndBottom(r.res.Records, r.opts.Limit)
		}

		rank.Sort(r.res.Records, r.opts.SortBy)

		return nil
	})
	if err != nil {
		return err
	}

	err = r.phase(ctx, PhaseSerialize, r.serialize)
	if err != nil {
		return err
	}

	if !r.opts.extremal() {
		return nil
	}

	return r.phase(ctx, PhasePlot, r.plot)
}

// phase runs fn inside a span and records its duration.
func (r *runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.deps.Tracer.Start(ctx, "gridagg."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	r.deps.Metrics.RecordPhase(ctx, name, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("%s: %w", name, err)
	}

	r.deps.Logger.DebugContext(ctx, "phase done", "phase", name, "duration", elapsed)

	if r.deps.PhaseDone != nil {
		r.deps.PhaseDone(name)
	}

	return nil
}

func (r *runner) build(ctx context.Context, idx *avl.Index) error {
	path := r.opts.inputPath()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ingestOpts := ingest.DefaultOptions(r.opts.Selection.Tier)
	ingestOpts.Delimiter = r.opts.Delimiter
	ingestOpts.Logger = r.deps.Logger.With("input", path)

	stats, err := ingest.Load(ctx, f, ingestOpts, idx)
	r.res.Stats = stats
	r.res.Stations = idx.Len()

	if err != nil {
		return err
	}

	tier := string(r.opts.Selection.Tier)
	r.deps.Metrics.RecordIngest(ctx, tier, stats.Lines, stats.Skipped, idx.Len())

	if stats.Skipped > 0 {
		r.deps.Logger.WarnContext(ctx, "malformed lines skipped",
			"input", path,
			"skipped", humanize.Comma(int64(stats.Skipped)),
			"lines", humanize.Comma(int64(stats.Lines)),
		)
	}

	r.deps.Logger.InfoContext(ctx, "index built",
		"input", path,
		"stations", idx.Len(),
		"height", idx.Height(),
	)

	return nil
}

func (r *runner) serialize(_ context.Context) error {
	o := r.opts
	sel := o.Selection
	tier := string(sel.Tier)

	err := r.writeFile(sel.SortedFile(o.OutputDir, report.Extension(o.Format)), o.Compress, func(rf *report.File) error {
		return report.Encode(rf, o.Format, tier, r.res.Records)
	})
	if err != nil {
		return err
	}

	if !o.extremal() {
		return nil
	}

	err = r.writeFile(sel.TopFile(o.OutputDir, o.Limit), o.Compress, func(rf *report.File) error {
		return report.WriteExtremal(rf, r.res.Top)
	})
	if err != nil {
		return err
	}

	return r.writeFile(sel.BottomFile(o.OutputDir, o.Limit), o.Compress, func(rf *report.File) error {
		return report.WriteExtremal(rf, r.res.Bottom)
	})
}

func (r *runner) writeFile(path string, compress bool, fn func(*report.File) error) error {
	rf, err := report.Create(path, compress)
	if err != nil {
		return err
	}

	err = fn(rf)

	closeErr := rf.Close()
	if err = errors.Join(err, closeErr); err != nil {
		return fmt.Errorf("write %s: %w", rf.Path, err)
	}

	r.res.Files = append(r.res.Files, rf.Path)

	return nil
}

func (r *runner) plot(ctx context.Context) error {
	o := r.opts
	sel := o.Selection

	if o.HTML {
		err := r.writeFile(sel.ChartFile(o.OutputDir), false, func(rf *report.File) error {
			return chart.WriteHTML(rf, r.res.Top, r.res.Bottom, chart.DefaultOptions(o.Limit))
		})
		if err != nil {
			return err
		}
	}

	script := sel.ScriptFile(o.OutputDir)

	err := r.writeFile(script, false, func(rf *report.File) error {
		return chart.WriteGnuplotScript(rf, chart.ScriptParams{
			Image:      sel.ImageFile(o.OutputDir),
			TopFile:    sel.TopFile(o.OutputDir, o.Limit),
			BottomFile: sel.BottomFile(o.OutputDir, o.Limit),
			Limit:      o.Limit,
		})
	})
	if err != nil {
		return err
	}

	if !o.Gnuplot {
		return nil
	}

	if o.Compress {
		r.deps.Logger.WarnContext(ctx, "gnuplot skipped: extremal reports are compressed", "script", script)

		return nil
	}

	err = chart.RunGnuplot(ctx, o.GnuplotBinary, script)
	if err != nil {
		r.deps.Logger.WarnContext(ctx, "gnuplot failed", "script", script, "error", err)

		return nil
	}

	r.res.Files = append(r.res.Files, sel.ImageFile(o.OutputDir))

	return nil
}
