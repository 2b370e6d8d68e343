// Package rank orders materialized station records and extracts the stations
// with the largest and smallest difference between capacity and consumption.
package rank

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

// ErrUnknownMetric is returned by ParseMetric for unsupported names.
var ErrUnknownMetric = errors.New("unknown ranking metric")

// Metric selects the value records are ordered by.
type Metric int

const (
	// Capacity orders by raw capacity.
	Capacity Metric = iota
	// Difference orders by capacity minus consumption.
	Difference
)

// Metric names accepted by ParseMetric.
const (
	MetricNameCapacity   = "capacity"
	MetricNameDifference = "difference"
)

// ParseMetric converts a metric name into a Metric.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MetricNameCapacity:
		return Capacity, nil
	case MetricNameDifference:
		return Difference, nil
	default:
		return Capacity, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

func (m Metric) String() string {
	if m == Difference {
		return MetricNameDifference
	}

	return MetricNameCapacity
}

// CompareCapacity orders records by ascending capacity. Equal capacities compare as 0.
func CompareCapacity(a, b station.Record) int {
	return cmp.Compare(a.Capacity, b.Capacity)
}

// CompareDifference orders records by ascending difference. Equal differences compare as 0.
func CompareDifference(a, b station.Record) int {
	return cmp.Compare(a.Difference, b.Difference)
}

// Comparator returns the comparison function for m.
func (m Metric) Comparator() func(a, b station.Record) int {
	if m == Difference {
		return CompareDifference
	}

	return CompareCapacity
}

// Sort orders records in place by m. Ties keep no particular order.
func Sort(records []station.Record, m Metric) {
	slices.SortFunc(records, m.Comparator())
}

// TopAndBottom returns the limit records with the largest difference (largest
// first) and the limit records with the smallest difference (smallest first).
// Both are truncated to len(records). The input is left untouched.
//
// When limit is at least half of len(records) the two results share records;
// each side is still computed from its own end of the sorted sequence.
func TopAndBottom(records []station.Record, limit int) (top, bottom []station.Record) {
	sorted := slices.Clone(records)
	Sort(sorted, Difference)

	n := min(max(limit, 0), len(sorted))
	top = make([]station.Record, n)
	bottom = make([]station.Record, n)

	for i := range n {
		top[i] = sorted[len(sorted)-1-i]
		bottom[i] = sorted[i]
	}

	return top, bottom
}
