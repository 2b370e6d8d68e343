// Package ingest reads delimited station lines and feeds the extracted
// (key, capacity, consumption) triples into an aggregation sink.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/gridagg/pkg/grid"
)

// Sentinel errors for rejected lines and options.
var (
	ErrMissingKey      = errors.New("empty or missing key")
	ErrMissingCapacity = errors.New("empty or missing capacity")
	ErrBadKey          = errors.New("key is not an integer")
	ErrBadCapacity     = errors.New("capacity is not a non-negative integer")
	ErrBadConsumption  = errors.New("consumption is not a finite non-negative number")
	ErrBadOptions      = errors.New("invalid ingest options")
)

// placeholder marks an absent capacity or consumption value in the source
// files; it reads as 0. A placeholder key still skips the line.
const placeholder = "-"

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// Inserter receives every accepted record. It reports whether the key was new.
type Inserter interface {
	Insert(key int, capacity int64, consumption float64) bool
}

// Options controls column extraction.
type Options struct {
	Delimiter         string
	KeyColumn         int
	CapacityColumn    int
	ConsumptionColumn int
	Logger            *slog.Logger
}

// DefaultOptions returns the column layout of the filtered grid files for tier.
func DefaultOptions(tier grid.Tier) Options {
	return Options{
		Delimiter:         ";",
		KeyColumn:         tier.KeyColumn(),
		CapacityColumn:    grid.ColumnCapacity,
		ConsumptionColumn: grid.ColumnConsumption,
	}
}

// Stats counts what happened to the input lines.
type Stats struct {
	Lines    int
	Inserted int
	Merged   int
	Skipped  int
}

// Record is the payload of one accepted input line. It is a single
// contribution, not a station total; the sink decides how contributions add up.
type Record struct {
	Key         int
	Capacity    int64
	Consumption float64
}

// Load reads r line by line and inserts each well-formed record into sink.
// Malformed lines are skipped and counted; read errors abort the load.
func Load(ctx context.Context, r io.Reader, opts Options, sink Inserter) (Stats, error) {
	var stats Stats

	if opts.Delimiter == "" || opts.KeyColumn < 0 || opts.CapacityColumn < 0 || opts.ConsumptionColumn < 0 {
		return stats, fmt.Errorf("%w: %+v", ErrBadOptions, opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("ingest interrupted at line %d: %w", stats.Lines, err)
		}

		stats.Lines++

		rec, err := ParseLine(scanner.Text(), opts)
		if err != nil {
			stats.Skipped++

			logger.DebugContext(ctx, "line ignored", "line", stats.Lines, "reason", err.Error())

			continue
		}

		if sink.Insert(rec.Key, rec.Capacity, rec.Consumption) {
			stats.Inserted++
		} else {
			stats.Merged++
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input after line %d: %w", stats.Lines, err)
	}

	return stats, nil
}

// ParseLine extracts a record from one delimited line.
func ParseLine(line string, opts Options) (Record, error) {
	fields := strings.Split(strings.TrimRight(line, "\r"), opts.Delimiter)

	keyField := field(fields, opts.KeyColumn)
	if keyField == "" || keyField == placeholder {
		return Record{}, ErrMissingKey
	}

	capField := field(fields, opts.CapacityColumn)
	if capField == "" {
		return Record{}, ErrMissingCapacity
	}

	key, err := strconv.Atoi(keyField)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrBadKey, keyField)
	}

	var capacity int64

	if capField != placeholder {
		capacity, err = strconv.ParseInt(capField, 10, 64)
		if err != nil || capacity < 0 {
			return Record{}, fmt.Errorf("%w: %q", ErrBadCapacity, capField)
		}
	}

	var consumption float64

	if consField := field(fields, opts.ConsumptionColumn); consField != "" && consField != placeholder {
		consumption, err = strconv.ParseFloat(consField, 64)
		if err != nil || consumption < 0 || math.IsNaN(consumption) || math.IsInf(consumption, 0) {
			return Record{}, fmt.Errorf("%w: %q", ErrBadConsumption, consField)
		}
	}

	return Record{Key: key, Capacity: capacity, Consumption: consumption}, nil
}

func field(fields []string, idx int) string {
	if idx >= len(fields) {
		return ""
	}

	return strings.TrimSpace(fields[idx])
}
