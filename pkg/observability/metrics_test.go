package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/gridagg/pkg/observability"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}

	return out
}

func TestPipelineMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	pm, err := observability.NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	pm.RecordIngest(ctx, "hvb", 10, 2, 5)
	pm.RecordIngest(ctx, "hvb", 4, 1, 6)
	pm.RecordPhase(ctx, "build", 30*time.Millisecond)
	pm.RecordPhase(ctx, "serialize", 2*time.Millisecond)

	got := collect(t, reader)

	lines, ok := got["gridagg.ingest.lines.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, lines.DataPoints, 1)
	assert.Equal(t, int64(14), lines.DataPoints[0].Value)

	skipped, ok := got["gridagg.ingest.skipped.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, skipped.DataPoints, 1)
	assert.Equal(t, int64(3), skipped.DataPoints[0].Value)

	stations, ok := got["gridagg.index.stations"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, stations.DataPoints, 1)
	assert.Equal(t, int64(6), stations.DataPoints[0].Value)

	phases, ok := got["gridagg.phase.duration.seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, phases.DataPoints, 2)
}
