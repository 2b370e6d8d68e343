package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gridagg/pkg/avl"
	"github.com/Sumatoshi-tech/gridagg/pkg/grid"
	"github.com/Sumatoshi-tech/gridagg/pkg/ingest"
)

const lvInput = `Power plant;HV-B Station;HV-A Station;LV Station;Company;Individual;Capacity;Load
1;-;1;1;-;-;100;40.0
1;-;1;2;-;-;200;150.0
1;-;1;1;-;-;50;10.0
1;-;1;3;-;-;10;-
1;-;1;;-;-;10;5
1;-;1;4;-;-;;5
1;-;1;5;-;-;12
`

func TestLoadAggregatesByTierColumn(t *testing.T) {
	t.Parallel()

	idx := avl.New()
	stats, err := ingest.Load(context.Background(), strings.NewReader(lvInput), ingest.DefaultOptions(grid.TierLV), idx)
	require.NoError(t, err)

	assert.Equal(t, ingest.Stats{Lines: 8, Inserted: 4, Merged: 1, Skipped: 3}, stats)
	assert.Equal(t, 4, idx.Len())

	entry, found := idx.Search(1)
	require.True(t, found)
	assert.Equal(t, int64(150), entry.Capacity)
	assert.InDelta(t, 50.0, entry.Consumption, 1e-9)

	entry, found = idx.Search(3)
	require.True(t, found)
	assert.InDelta(t, 0.0, entry.Consumption, 1e-9)

	entry, found = idx.Search(5)
	require.True(t, found)
	assert.Equal(t, int64(12), entry.Capacity)
}

func TestLoadLogsSkippedLines(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	opts := ingest.DefaultOptions(grid.TierHVA)
	opts.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	stats, err := ingest.Load(context.Background(), strings.NewReader("x;y\n1;2;7;3;4;5;60;1.5\n"), opts, avl.New())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Inserted)
	assert.Contains(t, logs.String(), "line ignored")
	assert.Contains(t, logs.String(), "line=1")
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	opts := ingest.DefaultOptions(grid.TierHVB)

	tests := []struct {
		line    string
		want    ingest.Record
		wantErr error
	}{
		{"0;12;-;-;-;-;500;-", ingest.Record{Key: 12, Capacity: 500}, nil},
		{"0;12;-;-;-;-;500;125.5\r", ingest.Record{Key: 12, Capacity: 500, Consumption: 125.5}, nil},
		{"0;12;-;-;-;-;500", ingest.Record{Key: 12, Capacity: 500}, nil},
		{"0;-;-;-;-;-;500;1", ingest.Record{}, ingest.ErrMissingKey},
		{"0;12;-;-;-;-;-;80.25", ingest.Record{Key: 12, Consumption: 80.25}, nil},
		{"0;12;-;-;-;-;;1", ingest.Record{}, ingest.ErrMissingCapacity},
		{"0;ab;-;-;-;-;500;1", ingest.Record{}, ingest.ErrBadKey},
		{"0;12;-;-;-;-;5x;1", ingest.Record{}, ingest.ErrBadCapacity},
		{"0;12;-;-;-;-;500;1,5", ingest.Record{}, ingest.ErrBadConsumption},
		{"0;12;-;-;-;-;-50;1", ingest.Record{}, ingest.ErrBadCapacity},
		{"0;12;-;-;-;-;500;-2.5", ingest.Record{}, ingest.ErrBadConsumption},
		{"0;12;-;-;-;-;500;NaN", ingest.Record{}, ingest.ErrBadConsumption},
		{"0;12;-;-;-;-;500;Inf", ingest.Record{}, ingest.ErrBadConsumption},
		{"0;12;-;-;-;-;500;-Inf", ingest.Record{}, ingest.ErrBadConsumption},
		{"", ingest.Record{}, ingest.ErrMissingKey},
	}

	for _, tt := range tests {
		got, err := ingest.ParseLine(tt.line, opts)
		if tt.wantErr != nil {
			require.ErrorIs(t, err, tt.wantErr, "line %q", tt.line)

			continue
		}

		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.want, got, "line %q", tt.line)
	}
}

func TestLoadKeepsTotalsMonotonic(t *testing.T) {
	t.Parallel()

	input := "0;-;-;7;-;-;100;10\n0;-;-;7;-;-;-50;NaN\n0;-;-;8;-;-;100;Inf\n0;-;-;7;-;-;5;-1\n"

	idx := avl.New()
	stats, err := ingest.Load(context.Background(), strings.NewReader(input), ingest.DefaultOptions(grid.TierLV), idx)
	require.NoError(t, err)
	assert.Equal(t, ingest.Stats{Lines: 4, Inserted: 1, Skipped: 3}, stats)

	entry, found := idx.Search(7)
	require.True(t, found)
	assert.Equal(t, int64(100), entry.Capacity)
	assert.InDelta(t, 10.0, entry.Consumption, 1e-9)

	_, found = idx.Search(8)
	assert.False(t, found)
}

func TestLoadRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := ingest.Load(context.Background(), strings.NewReader(""), ingest.Options{}, avl.New())
	require.ErrorIs(t, err, ingest.ErrBadOptions)
}

func TestLoadHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ingest.Load(ctx, strings.NewReader(lvInput), ingest.DefaultOptions(grid.TierLV), avl.New())
	require.ErrorIs(t, err, context.Canceled)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestLoadReportsReadErrors(t *testing.T) {
	t.Parallel()

	_, err := ingest.Load(context.Background(), errReader{}, ingest.DefaultOptions(grid.TierLV), avl.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
}
