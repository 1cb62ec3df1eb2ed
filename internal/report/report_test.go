package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/pipeline"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/units"
)

func ramp(n int, start, step float64) []timeseries.TimedScalar {
	out := make([]timeseries.TimedScalar, n)
	for i := range out {
		out[i] = timeseries.TimedScalar{Value: start + step*float64(i), TimeUsec: int64(i) * 20_000}
	}
	return out
}

func sampleWindows() []pipeline.WindowReport {
	return []pipeline.WindowReport{
		{Window: pipeline.Window{Index: 0, Start: 0, End: 40}, Iterations: 30, Objective: 0.01, Converged: true, Status: "GradientThreshold"},
		{Window: pipeline.Window{Index: 1, Start: 5, End: 45}, Iterations: 500, Objective: 0.03, Status: "IterationLimit"},
		{Window: pipeline.Window{Index: 2, Start: 45, End: 46}, Skipped: true, SkipReason: "1 locations, need 2"},
	}
}

func TestSummarize(t *testing.T) {
	velocities := ramp(101, 0, 0.1) // 0..10 m/s
	steering := ramp(11, -0.5, 0.1)

	s, err := Summarize(velocities, steering, sampleWindows(), units.KMPH)
	require.NoError(t, err)

	assert.Equal(t, units.KMPH, s.Units)
	assert.Equal(t, 101, s.Speed.Count)
	assert.InDelta(t, 0, s.Speed.Min, 1e-9)
	assert.InDelta(t, 36, s.Speed.Max, 1e-9)
	assert.InDelta(t, 18, s.Speed.Mean, 1e-9)
	assert.InDelta(t, 18, s.Speed.P50, 1e-9)
	assert.InDelta(t, 34.2, s.Speed.P95, 0.5)

	assert.InDelta(t, -0.5, s.Steering.Min, 1e-9)
	assert.InDelta(t, 0.5, s.Steering.Max, 1e-9)

	assert.Equal(t, 3, s.Windows)
	assert.Equal(t, 2, s.Fitted)
	assert.Equal(t, 1, s.Converged)
	assert.Equal(t, 2, s.Objective.Count)
	assert.InDelta(t, 0.02, s.Objective.Mean, 1e-12)

	text := s.String()
	assert.Contains(t, text, "km/h")
	assert.Contains(t, text, "fitted 2")

	raw, err := s.JSON()
	require.NoError(t, err)
	var decoded Summary
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, s, decoded)
}

func TestSummarizeEmpty(t *testing.T) {
	s, err := Summarize(nil, nil, nil, units.MPS)
	require.NoError(t, err)
	assert.Zero(t, s.Speed.Count)
	assert.Zero(t, s.Objective.Count)
}

func TestWritePlots(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	paths, err := WritePlots(fsys, "/out/plots", ramp(500, 10, 0), ramp(500, 0.1, 0), units.MPH)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/plots/velocity.png", "/out/plots/steering.png"}, paths)

	for _, p := range paths {
		data, err := fsys.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", p)
	}
}

func TestWritePlotsEmptySeries(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	paths, err := WritePlots(fsys, "plots", nil, nil, units.MPS)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestRenderHTML(t *testing.T) {
	velocities := ramp(2*maxChartPoints+10, 10, 0)
	summary, err := Summarize(velocities, nil, sampleWindows(), units.MPS)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, Input{
		Title:      "drive 42",
		Velocities: velocities,
		Steering:   ramp(10, 0, 0.01),
		Windows:    sampleWindows(),
		Summary:    summary,
	}))

	html := buf.String()
	assert.Contains(t, html, "<title>drive 42</title>")
	assert.Contains(t, html, "echarts")
	for _, want := range []string{"Speed", "Steering", "Window objective", "skipped: 1 locations, need 2"} {
		assert.True(t, strings.Contains(html, want), "missing %q", want)
	}
}

func TestWriteHTML(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, WriteHTML(fsys, "report.html", Input{Summary: Summary{Units: units.MPS}}))
	assert.True(t, fsys.Exists("report.html"))

	err := WriteHTML(fsys, "/missing/report.html", Input{})
	assert.ErrorContains(t, err, "failed to write")
}
