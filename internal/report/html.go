package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/pipeline"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/units"
)

// maxChartPoints caps the samples per line chart; longer series are
// strided so the page stays responsive.
const maxChartPoints = 5000

// Input is everything shown on the HTML report.
type Input struct {
	Title      string
	Velocities []timeseries.TimedScalar
	Steering   []timeseries.TimedScalar
	Windows    []pipeline.WindowReport
	Summary    Summary
}

// RenderHTML writes a standalone page with speed and steering line charts
// and a bar chart of the final objective per window.
func RenderHTML(w io.Writer, in Input) error {
	unit := in.Summary.Units
	speed := make([]timeseries.TimedScalar, len(in.Velocities))
	for i, v := range in.Velocities {
		speed[i] = timeseries.TimedScalar{Value: units.ConvertSpeed(v.Value, unit), TimeUsec: v.TimeUsec}
	}

	title := in.Title
	if title == "" {
		title = "fit-motion report"
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		lineChart("Speed", in.Summary.String(), "speed ("+units.Label(unit)+")", speed),
		lineChart("Steering", "rotation rate about the vertical axis", "rad/s", in.Steering),
		objectiveChart(in.Windows),
	)
	return page.Render(w)
}

// WriteHTML renders the report into path.
func WriteHTML(fsys fsutil.FileSystem, path string, in Input) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, in); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func lineChart(title, subtitle, name string, series []timeseries.TimedScalar) *charts.Line {
	stride := 1
	if len(series) > maxChartPoints {
		stride = (len(series) + maxChartPoints - 1) / maxChartPoints
	}

	var (
		x    []string
		data []opts.LineData
	)
	if len(series) > 0 {
		origin := series[0].TimeUsec
		for i := 0; i < len(series); i += stride {
			x = append(x, fmt.Sprintf("%.3f", float64(series[i].TimeUsec-origin)*1e-6))
			data = append(data, opts.LineData{Value: series[i].Value})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: name}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).
		AddSeries(name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func objectiveChart(windows []pipeline.WindowReport) *charts.Bar {
	x := make([]string, 0, len(windows))
	y := make([]opts.BarData, 0, len(windows))
	for _, w := range windows {
		x = append(x, fmt.Sprintf("%d", w.Window.Index))
		if w.Skipped {
			y = append(y, opts.BarData{Value: 0, Name: "skipped: " + w.SkipReason})
			continue
		}
		y = append(y, opts.BarData{Value: w.Objective, Name: fmt.Sprintf("%d iterations, %s", w.Iterations, w.Status)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Window objective", Subtitle: "mean squared speed residual per window"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "window", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "(m/s)²"}),
	)
	bar.SetXAxis(x).AddSeries("objective", y)
	return bar
}
