// Package chart renders the extremal stations of a run: an in-process
// echarts HTML bar chart and the gnuplot script of the classic tool chain.
package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/gridagg/pkg/station"
)

// Series names and colors shared by the HTML chart and the gnuplot script.
const (
	OverloadSeries      = "Overload"
	UnderutilizedSeries = "Underutilized"

	overloadColor      = "red"
	underutilizedColor = "green"

	missingValue = "-"
	stackName    = "difference"
	xAxisRotate  = 45
)

// Options controls the chart appearance.
type Options struct {
	Title  string
	YLabel string
	XLabel string
	Width  string
	Height string
}

// DefaultOptions returns the labels used for the extremal chart.
func DefaultOptions(limit int) Options {
	return Options{
		Title:  fmt.Sprintf("Top %d and Bottom %d Stations by Difference", limit, limit),
		YLabel: "Difference (kW)",
		XLabel: "Station ID",
		Width:  "1200px",
		Height: "600px",
	}
}

// BuildExtremalChart builds a bar chart with the top stations followed by
// the bottom stations along the x axis. Each group is its own series, so
// the other group's slots are left empty.
func BuildExtremalChart(top, bottom []station.Record, o Options) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     o.Width,
			Height:    o.Height,
		}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%", Left: "center"}),
		charts.WithGridOpts(opts.Grid{
			Left: "5%", Right: "5%",
			Top: "20%", Bottom: "15%",
			ContainLabel: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      o.XLabel,
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      o.YLabel,
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)

	labels := make([]string, 0, len(top)+len(bottom))
	for _, r := range top {
		labels = append(labels, strconv.Itoa(r.Key))
	}

	for _, r := range bottom {
		labels = append(labels, strconv.Itoa(r.Key))
	}

	bar.SetXAxis(labels)

	bar.AddSeries(OverloadSeries, barData(top, 0, len(labels)),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: overloadColor}),
		charts.WithBarChartOpts(opts.BarChart{Stack: stackName}),
	)
	bar.AddSeries(UnderutilizedSeries, barData(bottom, len(top), len(labels)),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: underutilizedColor}),
		charts.WithBarChartOpts(opts.BarChart{Stack: stackName}),
	)

	return bar
}

// barData places the differences of records at [offset, offset+len(records))
// in a slice of size total; every other slot holds the echarts missing marker.
func barData(records []station.Record, offset, total int) []opts.BarData {
	data := make([]opts.BarData, total)
	for i := range data {
		data[i] = opts.BarData{Value: missingValue}
	}

	for i, r := range records {
		data[offset+i] = opts.BarData{Name: strconv.Itoa(r.Key), Value: r.Difference}
	}

	return data
}

// WriteHTML renders the extremal chart as a standalone HTML page.
func WriteHTML(w io.Writer, top, bottom []station.Record, o Options) error {
	err := BuildExtremalChart(top, bottom, o).Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
