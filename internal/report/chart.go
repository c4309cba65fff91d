package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/ripor/slocheck/internal/sampling"
	"github.com/ripor/slocheck/internal/slo"
)

// Chart writes an HTML page with one line chart per metric. Each chart
// plots the accepted samples against the metric threshold.
func Chart(w io.Writer, result *slo.Result, series *sampling.Series) error {
	if result == nil || series == nil {
		return fmt.Errorf("result and series are required")
	}

	labels := make([]string, len(series.Samples))
	for i, s := range series.Samples {
		labels[i] = strconv.FormatFloat(s.Offset.Seconds(), 'f', 1, 64)
	}

	page := components.NewPage()
	page.PageTitle = "Idle SLO " + result.RunID
	page.AddCharts(
		metricChart("Agent CPU (%)", labels, series.CPU(), result.CPU),
		metricChart("Agent memory (MB)", labels, series.Mem(), result.Mem),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	return nil
}

// SaveChart renders Chart into the file at path.
func SaveChart(path string, result *slo.Result, series *sampling.Series) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Chart(f, result, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func metricChart(title string, labels []string, values []float64, stat slo.MetricStat) *charts.Line {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("p95 %.2f, avg %.2f, threshold %.2f", stat.P95, stat.Avg, stat.Threshold)
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "s"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)

	data := make([]opts.LineData, len(values))
	limit := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
		limit[i] = opts.LineData{Value: stat.Threshold}
	}

	line.SetXAxis(labels).
		AddSeries("sample", data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		).
		AddSeries("threshold", limit,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	return line
}
