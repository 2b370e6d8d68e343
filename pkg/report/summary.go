package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

// Summary describes one completed run for the terminal.
type Summary struct {
	Tier     string
	Consumer string
	Lines    int
	Skipped  int
	Stations int
	Files    []string
	Top      []station.Record
	Bottom   []station.Record
}

// RenderSummary writes a human-readable run summary. Overloaded stations
// (negative difference) are highlighted unless noColor is set.
func RenderSummary(w io.Writer, s Summary, noColor bool) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s/%s: %s stations from %s lines (%s skipped)\n",
		s.Tier, s.Consumer,
		humanize.Comma(int64(s.Stations)),
		humanize.Comma(int64(s.Lines)),
		humanize.Comma(int64(s.Skipped)),
	)

	if len(s.Top) > 0 || len(s.Bottom) > 0 {
		sb.WriteString(extremalTable("Largest difference", s.Top, noColor))
		sb.WriteString("\n")
		sb.WriteString(extremalTable("Smallest difference", s.Bottom, noColor))
		sb.WriteString("\n")
	}

	for _, f := range s.Files {
		sb.WriteString("wrote " + f + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func extremalTable(title string, records []station.Record, noColor bool) string {
	overload := color.New(color.FgRed)
	if noColor {
		overload.DisableColor()
	} else {
		overload.EnableColor()
	}

	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(table.Row{"Station", "Capacity", "Consumption", "Difference"})

	for _, r := range records {
		diff := strconv.FormatFloat(r.Difference, 'f', 2, 64)
		if r.Difference < 0 {
			diff = overload.Sprint(diff)
		}

		tbl.AppendRow(table.Row{
			r.Key,
			humanize.Comma(r.Capacity),
			humanize.CommafWithDigits(r.Consumption, 2),
			diff,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d stations", len(records))})

	return tbl.Render()
}
