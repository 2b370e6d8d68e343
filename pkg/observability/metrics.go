package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricLinesTotal    = "gridagg.ingest.lines.total"
	metricSkippedTotal  = "gridagg.ingest.skipped.total"
	metricStations      = "gridagg.index.stations"
	metricPhaseDuration = "gridagg.phase.duration.seconds"

	attrPhase = "phase"
	attrTier  = "tier"
)

// phaseBucketBoundaries covers 1ms to 120s: small filter files finish in
// milliseconds, full low-voltage extracts take tens of seconds.
var phaseBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// metricBuilder accumulates instrument creation errors so a batch of
// instruments needs a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) gauge(name, desc, unit string) metric.Int64Gauge {
	g, err := b.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return g
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// PipelineMetrics holds the instruments recorded by one aggregation run.
type PipelineMetrics struct {
	linesTotal    metric.Int64Counter
	skippedTotal  metric.Int64Counter
	stations      metric.Int64Gauge
	phaseDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		linesTotal:    b.counter(metricLinesTotal, "Input lines read", "{line}"),
		skippedTotal:  b.counter(metricSkippedTotal, "Input lines skipped as malformed", "{line}"),
		stations:      b.gauge(metricStations, "Distinct stations held by the index", "{station}"),
		phaseDuration: b.histogram(metricPhaseDuration, "Pipeline phase duration in seconds", "s", phaseBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordIngest records the line counters and the resulting index size for a tier.
func (pm *PipelineMetrics) RecordIngest(ctx context.Context, tier string, lines, skipped, stations int) {
	attrs := metric.WithAttributes(attribute.String(attrTier, tier))

	pm.linesTotal.Add(ctx, int64(lines), attrs)
	pm.skippedTotal.Add(ctx, int64(skipped), attrs)
	pm.stations.Record(ctx, int64(stations), attrs)
}

// RecordPhase records how long a pipeline phase took.
func (pm *PipelineMetrics) RecordPhase(ctx context.Context, phase string, duration time.Duration) {
	pm.phaseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrPhase, phase)))
}
