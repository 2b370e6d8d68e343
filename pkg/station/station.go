// Package station holds the materialized view of the aggregation index: flat,
// independent records that sorting and ranking can reorder freely.
package station

import "github.com/Sumatoshi-tech/gridagg/pkg/avl"

// Record is one aggregated station copied out of the index.
type Record struct {
	Key         int     `json:"key"         yaml:"key"`
	Capacity    int64   `json:"capacity"    yaml:"capacity"`
	Consumption float64 `json:"consumption" yaml:"consumption"`
	Difference  float64 `json:"difference"  yaml:"difference"`
}

// Source is anything that can enumerate aggregated entries in key order.
type Source interface {
	Len() int
	Walk(fn func(avl.Entry) bool)
}

// FromEntry copies an index entry and derives its difference.
func FromEntry(e avl.Entry) Record {
	return Record{
		Key:         e.Key,
		Capacity:    e.Capacity,
		Consumption: e.Consumption,
		Difference:  float64(e.Capacity) - e.Consumption,
	}
}

// Collect snapshots src into a slice ordered by ascending key.
func Collect(src Source) []Record {
	records := make([]Record, 0, src.Len())

	src.Walk(func(e avl.Entry) bool {
		records = append(records, FromEntry(e))

		return true
	})

	return records
}
