package chart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// ErrGnuplotUnavailable is returned when the gnuplot binary cannot be found.
var ErrGnuplotUnavailable = errors.New("gnuplot not available")

// DefaultGnuplotBinary is looked up on PATH when no binary is configured.
const DefaultGnuplotBinary = "gnuplot"

// ScriptParams names the files a gnuplot script reads and writes.
type ScriptParams struct {
	Image      string
	TopFile    string
	BottomFile string
	Limit      int
}

// WriteGnuplotScript writes a script that draws the top and bottom reports
// as boxes of the difference column (4) labelled by station id (1).
func WriteGnuplotScript(w io.Writer, p ScriptParams) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "set terminal png size 1200,600")
	fmt.Fprintf(bw, "set output '%s'\n", p.Image)
	fmt.Fprintf(bw, "set title 'Top %d and Bottom %d Stations by Difference'\n", p.Limit, p.Limit)
	fmt.Fprintln(bw, "set boxwidth 0.5 relative")
	fmt.Fprintln(bw, "set style fill solid border -1")
	fmt.Fprintln(bw, "set ylabel 'Difference (kW)'")
	fmt.Fprintln(bw, "set xlabel 'Station ID'")
	fmt.Fprintln(bw, "set xtics rotate by -45")
	fmt.Fprintln(bw, "set yrange [*:*]")
	fmt.Fprintln(bw, "set grid ytics")
	fmt.Fprintln(bw, `set datafile separator ":"`)
	fmt.Fprintf(bw, "plot '%s' using 4:xtic(1) with boxes title '%s (Top %d)' lc rgb '%s', \\\n",
		p.TopFile, OverloadSeries, p.Limit, overloadColor)
	fmt.Fprintf(bw, "     '%s' using 4:xtic(1) with boxes title '%s (Bottom %d)' lc rgb '%s'\n",
		p.BottomFile, UnderutilizedSeries, p.Limit, underutilizedColor)

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write gnuplot script: %w", err)
	}

	return nil
}

// RunGnuplot executes binary on script. Callers treat a failure as a warning.
func RunGnuplot(ctx context.Context, binary, script string) error {
	if binary == "" {
		binary = DefaultGnuplotBinary
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGnuplotUnavailable, err)
	}

	out, err := exec.CommandContext(ctx, path, script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("gnuplot %s: %w: %s", script, err, out)
	}

	return nil
}
