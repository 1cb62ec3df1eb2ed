// Package report renders fit results for people: summary statistics, PNG
// plots and a single-page HTML report.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/banshee-data/motionfit/internal/pipeline"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/units"
)

// Stats describes the distribution of one series.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Summary condenses a run. Speeds are in Units, steering in rad/s.
type Summary struct {
	Units     string `json:"units"`
	Speed     Stats  `json:"speed"`
	Steering  Stats  `json:"steering"`
	Objective Stats  `json:"objective"`
	Windows   int    `json:"windows"`
	Fitted    int    `json:"fitted"`
	Converged int    `json:"converged"`
}

// Summarize computes statistics of the outputs and of the final objective
// of every fitted window. Empty series yield zero Stats.
func Summarize(velocities, steering []timeseries.TimedScalar, windows []pipeline.WindowReport, unit string) (Summary, error) {
	s := Summary{Units: unit, Windows: len(windows)}
	var err error
	if s.Speed, err = describe(units.ConvertSpeeds(timeseries.Values(velocities), unit)); err != nil {
		return Summary{}, fmt.Errorf("speed: %w", err)
	}
	if s.Steering, err = describe(timeseries.Values(steering)); err != nil {
		return Summary{}, fmt.Errorf("steering: %w", err)
	}

	var objectives []float64
	for _, w := range windows {
		if w.Skipped {
			continue
		}
		s.Fitted++
		if w.Converged {
			s.Converged++
		}
		objectives = append(objectives, w.Objective)
	}
	if s.Objective, err = describe(objectives); err != nil {
		return Summary{}, fmt.Errorf("objective: %w", err)
	}
	return s, nil
}

func describe(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, nil
	}
	data := stats.Float64Data(values)
	var (
		out Stats
		err error
	)
	out.Count = data.Len()
	if out.Min, err = data.Min(); err != nil {
		return Stats{}, err
	}
	if out.Max, err = data.Max(); err != nil {
		return Stats{}, err
	}
	if out.Mean, err = data.Mean(); err != nil {
		return Stats{}, err
	}
	if out.P50, err = data.Median(); err != nil {
		return Stats{}, err
	}
	if out.P95, err = data.Percentile(95); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// JSON returns the summary as compact JSON for the run store.
func (s Summary) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s Summary) String() string {
	label := units.Label(s.Units)
	return fmt.Sprintf("speed %s: mean %.2f p50 %.2f p95 %.2f max %.2f (n=%d); steering rad/s: min %.3f max %.3f; windows %d fitted %d converged %d; objective p50 %.3g max %.3g",
		label, s.Speed.Mean, s.Speed.P50, s.Speed.P95, s.Speed.Max, s.Speed.Count,
		s.Steering.Min, s.Steering.Max,
		s.Windows, s.Fitted, s.Converged, s.Objective.P50, s.Objective.Max)
}
