// Package report renders station records into the line-oriented report files
// and the terminal summary.
package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

// Sorted report encodings.
const (
	FormatLines = "lines"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported report encoding.
var ErrUnknownFormat = errors.New("unknown report format")

// ValidFormat reports whether format names a supported sorted report encoding.
func ValidFormat(format string) bool {
	switch format {
	case FormatLines, FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// SortedHeader returns the header line of a sorted report for tier.
func SortedHeader(tier string) string {
	return "ID" + tier + ":Capacity:Consumption"
}

// SortedLine formats a record as key:capacity:consumption.
func SortedLine(r station.Record) string {
	return strconv.Itoa(r.Key) + ":" +
		strconv.FormatInt(r.Capacity, 10) + ":" +
		strconv.FormatFloat(r.Consumption, 'f', 2, 64)
}

// ExtremalLine formats a record as key:capacity:consumption:difference.
func ExtremalLine(r station.Record) string {
	return SortedLine(r) + ":" + strconv.FormatFloat(r.Difference, 'f', 2, 64)
}

// WriteSorted writes the header and one line per record, in the given order.
func WriteSorted(w io.Writer, tier string, records []station.Record) error {
	bw := bufio.NewWriter(w)

	_, err := bw.WriteString(SortedHeader(tier) + "\n")
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		_, err = bw.WriteString(SortedLine(r) + "\n")
		if err != nil {
			return fmt.Errorf("write station %d: %w", r.Key, err)
		}
	}

	return flush(bw)
}

// WriteExtremal writes one key:capacity:consumption:difference line per record.
func WriteExtremal(w io.Writer, records []station.Record) error {
	bw := bufio.NewWriter(w)

	for _, r := range records {
		_, err := bw.WriteString(ExtremalLine(r) + "\n")
		if err != nil {
			return fmt.Errorf("write station %d: %w", r.Key, err)
		}
	}

	return flush(bw)
}

// sortedDocument is the structured form of a sorted report.
type sortedDocument struct {
	Tier     string           `json:"tier"     yaml:"tier"`
	Stations []station.Record `json:"stations" yaml:"stations"`
}

// Encode writes the sorted report in the requested format.
func Encode(w io.Writer, format, tier string, records []station.Record) error {
	switch format {
	case FormatLines, "":
		return WriteSorted(w, tier, records)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(sortedDocument{Tier: tier, Stations: records})
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(sortedDocument{Tier: tier, Stations: records})
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func flush(bw *bufio.Writer) error {
	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("flush report: %w", err)
	}

	return nil
}
