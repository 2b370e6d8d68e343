package station_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gridagg/pkg/avl"
	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

func TestCollectAggregatesAndOrders(t *testing.T) {
	t.Parallel()

	idx := avl.New()
	idx.Insert(1, 100, 40.0)
	idx.Insert(2, 200, 150.0)
	idx.Insert(1, 50, 10.0)
	idx.Insert(3, 10, 5.0)

	records := station.Collect(idx)

	require.Len(t, records, 3)
	assert.Equal(t, []station.Record{
		{Key: 1, Capacity: 150, Consumption: 50.0, Difference: 100.0},
		{Key: 2, Capacity: 200, Consumption: 150.0, Difference: 50.0},
		{Key: 3, Capacity: 10, Consumption: 5.0, Difference: 5.0},
	}, records)
}

func TestCollectEmpty(t *testing.T) {
	t.Parallel()

	records := station.Collect(avl.New())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestCollectIsIndependentOfIndex(t *testing.T) {
	t.Parallel()

	idx := avl.New()
	for k := 10; k > 0; k-- {
		idx.Insert(k, int64(k), 0)
	}

	records := station.Collect(idx)
	records[0].Capacity = 999

	entry, found := idx.Search(1)
	require.True(t, found)
	assert.Equal(t, int64(1), entry.Capacity)

	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].Key, records[i].Key)
	}
}

func TestFromEntryNegativeDifference(t *testing.T) {
	t.Parallel()

	rec := station.FromEntry(avl.Entry{Key: 4, Capacity: 10, Consumption: 12.5})
	assert.InDelta(t, -2.5, rec.Difference, 1e-9)
}
