package report

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/units"
)

// Plot file names written by WritePlots.
const (
	VelocityPlotFile = "velocity.png"
	SteeringPlotFile = "steering.png"
)

var (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch

	velocityColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	steeringColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// WritePlots renders the velocity and steering series as PNG files in dir
// and returns the written paths. Speeds are converted to unit.
func WritePlots(fsys fsutil.FileSystem, dir string, velocities, steering []timeseries.TimedScalar, unit string) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	speed := make([]timeseries.TimedScalar, len(velocities))
	for i, v := range velocities {
		speed[i] = timeseries.TimedScalar{Value: units.ConvertSpeed(v.Value, unit), TimeUsec: v.TimeUsec}
	}

	var written []string
	plots := []struct {
		file, title, yLabel string
		series              []timeseries.TimedScalar
		color               color.Color
	}{
		{VelocityPlotFile, "Fitted speed", "Speed (" + units.Label(unit) + ")", speed, velocityColor},
		{SteeringPlotFile, "Horizontal turn rate", "Angular velocity (rad/s)", steering, steeringColor},
	}
	for _, p := range plots {
		png, err := renderSeries(p.title, p.yLabel, p.series, p.color)
		if err != nil {
			return written, fmt.Errorf("failed to render %s: %w", p.file, err)
		}
		path := filepath.Join(dir, p.file)
		if err := fsys.WriteFile(path, png, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// renderSeries draws one series against seconds since its first sample and
// returns the PNG bytes.
func renderSeries(title, yLabel string, series []timeseries.TimedScalar, c color.Color) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	if len(series) > 0 {
		pts := make(plotter.XYs, len(series))
		origin := series[0].TimeUsec
		for i, s := range series {
			pts[i] = plotter.XY{X: float64(s.TimeUsec-origin) * 1e-6, Y: s.Value}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = c
		line.Width = vg.Points(1)
		p.Add(line)
	}

	w, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
