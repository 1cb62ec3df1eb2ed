package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/calibration"
	"github.com/banshee-data/motionfit/internal/monitoring"
	"github.com/banshee-data/motionfit/internal/smoothing"
	"github.com/banshee-data/motionfit/internal/timeseries"
)

var (
	// ErrEmptyInput is returned when one of the input streams is empty.
	ErrEmptyInput = errors.New("pipeline: empty input stream")
	// ErrNoEstimates is returned when every window was skipped.
	ErrNoEstimates = errors.New("pipeline: no window produced a speed estimate")
	// ErrInvalidOptions is returned for options Run cannot use.
	ErrInvalidOptions = errors.New("pipeline: invalid options")
	// ErrLengthMismatch flags a projection whose length differs from its input.
	ErrLengthMismatch = errors.New("pipeline: length mismatch")
)

// Inputs are the recorded streams, each sorted by time.
type Inputs struct {
	Rotations     []timeseries.TimedVec3
	Accelerations []timeseries.TimedVec3
	Locations     []timeseries.TimedScalar
}

// Options configure Run. Zero values fall back to DefaultOptions; negative
// values are rejected.
type Options struct {
	BatchSize          int
	ShiftStep          int
	SmoothingSigma     float64
	MinWindowLocations int
	Weighting          Weighting
	Workers            int
	// Minimizer fits each window. Nil uses L-BFGS with default settings.
	Minimizer calibration.Minimizer
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		BatchSize:          40,
		ShiftStep:          5,
		SmoothingSigma:     0.003,
		MinWindowLocations: 2,
		Weighting:          WeightUniform,
		Workers:            1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BatchSize == 0 {
		o.BatchSize = def.BatchSize
	}
	if o.ShiftStep == 0 {
		o.ShiftStep = def.ShiftStep
	}
	if o.SmoothingSigma == 0 {
		o.SmoothingSigma = def.SmoothingSigma
	}
	if o.MinWindowLocations == 0 {
		o.MinWindowLocations = def.MinWindowLocations
	}
	if o.Weighting == "" {
		o.Weighting = def.Weighting
	}
	if o.Workers == 0 {
		o.Workers = def.Workers
	}
	if o.Minimizer == nil {
		o.Minimizer = calibration.NewLBFGS(calibration.DefaultLBFGSSettings())
	}
	return o
}

// validate rejects options that survive defaulting but cannot be run.
func (o Options) validate() error {
	switch {
	case !(o.SmoothingSigma > 0) || math.IsInf(o.SmoothingSigma, 0):
		return fmt.Errorf("%w: smoothing sigma %g", ErrInvalidOptions, o.SmoothingSigma)
	case o.MinWindowLocations < 1:
		return fmt.Errorf("%w: min window locations %d", ErrInvalidOptions, o.MinWindowLocations)
	case o.Workers < 1:
		return fmt.Errorf("%w: workers %d", ErrInvalidOptions, o.Workers)
	}
	if _, err := ParseWeighting(string(o.Weighting)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// WindowReport describes the fit of one window.
type WindowReport struct {
	Window    Window
	Locations int
	// Events is the number of merged IMU events integrated.
	Events     int
	Iterations int
	Objective  float64
	Converged  bool
	Status     string
	Params     calibration.Params
	// Skipped is set for windows that produced no estimates.
	Skipped    bool
	SkipReason string
}

// Result is the output of Run.
type Result struct {
	// Velocities is the smoothed speed at every covered merged event.
	Velocities []timeseries.TimedScalar
	// Aggregated is the pooled mean speed before smoothing.
	Aggregated []timeseries.TimedScalar
	Windows    []WindowReport
}

// Fitted returns the number of windows that contributed estimates.
func (r *Result) Fitted() int {
	n := 0
	for _, w := range r.Windows {
		if !w.Skipped {
			n++
		}
	}
	return n
}

type windowOutcome struct {
	report    WindowReport
	indices   []int
	speeds    []float64
	objective float64
}

// Run fits every window of the GPS stream and returns the pooled, smoothed
// velocity magnitude. Windows are fitted concurrently when opts.Workers > 1;
// the output does not depend on the worker count.
func Run(ctx context.Context, in Inputs, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := checkInputs(in); err != nil {
		return nil, err
	}
	windows, err := PlanWindows(len(in.Locations), opts.BatchSize, opts.ShiftStep)
	if err != nil {
		return nil, err
	}

	merged := timeseries.NewMergedTimes(in.Rotations, in.Accelerations)
	monitoring.Diagf("merged %d rotations and %d accelerations into %d events; %d windows",
		len(in.Rotations), len(in.Accelerations), merged.Len(), len(windows))

	outcomes := make([]windowOutcome, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fitWindow(gctx, in, merged, w, opts)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := NewPool()
	result := &Result{Windows: make([]WindowReport, 0, len(windows))}
	for _, out := range outcomes {
		result.Windows = append(result.Windows, out.report)
		if out.report.Skipped {
			continue
		}
		weight := opts.Weighting.WindowWeight(out.objective)
		for j, idx := range out.indices {
			pool.Add(idx, Estimate{Value: out.speeds[j], Weight: weight})
		}
	}
	if pool.Len() == 0 {
		return nil, ErrNoEstimates
	}

	result.Aggregated = pool.Aggregate(merged)
	result.Velocities, err = smooth(result.Aggregated, opts.SmoothingSigma)
	if err != nil {
		return nil, err
	}
	monitoring.Diagf("fitted %d of %d windows; %d velocity samples", result.Fitted(), len(windows), len(result.Velocities))
	return result, nil
}

func checkInputs(in Inputs) error {
	switch {
	case len(in.Rotations) == 0:
		return fmt.Errorf("%w: rotations", ErrEmptyInput)
	case len(in.Accelerations) == 0:
		return fmt.Errorf("%w: accelerations", ErrEmptyInput)
	case len(in.Locations) == 0:
		return fmt.Errorf("%w: locations", ErrEmptyInput)
	}
	if err := timeseries.CheckSorted(in.Rotations); err != nil {
		return fmt.Errorf("rotations: %w", err)
	}
	if err := timeseries.CheckSorted(in.Accelerations); err != nil {
		return fmt.Errorf("accelerations: %w", err)
	}
	if err := timeseries.CheckSorted(in.Locations); err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	return nil
}

func fitWindow(ctx context.Context, in Inputs, merged *timeseries.MergedTimes, w Window, opts Options) (windowOutcome, error) {
	report := WindowReport{Window: w, Locations: w.Len()}
	skip := func(reason string) (windowOutcome, error) {
		report.Skipped = true
		report.SkipReason = reason
		monitoring.Opsf("skipping %s: %s", w, reason)
		return windowOutcome{report: report}, nil
	}
	if w.Len() < opts.MinWindowLocations {
		return skip(fmt.Sprintf("%d locations, need %d", w.Len(), opts.MinWindowLocations))
	}

	cal, err := calibration.NewCalibrator(in.Locations[w.Start:w.End], in.Rotations, in.Accelerations, merged)
	if errors.Is(err, calibration.ErrNoImuEvents) {
		return skip(err.Error())
	}
	if err != nil {
		return windowOutcome{}, fmt.Errorf("%s: %w", w, err)
	}

	obj := cal.Objective()
	if monitoring.TraceEnabled() {
		obj = tracedObjective(w, obj)
	}
	fit, err := opts.Minimizer.Minimize(ctx, obj, make([]float64, calibration.NumParams))
	if err != nil {
		return windowOutcome{}, fmt.Errorf("%s: %w", w, err)
	}
	params := calibration.ParamsFromVector(fit.X)
	traj := cal.IntegrateTrajectory(params.GlobalBias, params.BodyBias, params.InitialVelocity)

	report.Events = traj.Len()
	report.Iterations = fit.Iterations
	report.Objective = fit.Value
	report.Converged = fit.Converged
	report.Status = fit.Status
	report.Params = params

	monitoring.Diagf("%s: %d locations, %d events, iterations=%d objective=%.6g",
		w, report.Locations, report.Events, fit.Iterations, fit.Value)
	if !fit.Converged {
		monitoring.Opsf("%s did not converge (%s), keeping best point", w, fit.Status)
	}

	out := windowOutcome{
		report:    report,
		indices:   make([]int, traj.Len()),
		speeds:    make([]float64, traj.Len()),
		objective: fit.Value,
	}
	for i, o := range traj.Outcomes {
		out.indices[i] = traj.Index(i)
		out.speeds[i] = r3.Norm(o.Velocity)
	}
	return out, nil
}

func tracedObjective(w Window, obj calibration.Objective) calibration.Objective {
	n := 0
	return calibration.Objective{
		Func: func(x []float64) float64 {
			v := obj.Func(x)
			n++
			monitoring.Tracef("%s eval %d: cost=%.9g params=%s", w, n, v, calibration.ParamsFromVector(x))
			return v
		},
		Grad: obj.Grad,
	}
}

// smooth resamples the aggregated series onto its own timestamps.
func smooth(series []timeseries.TimedScalar, sigma float64) ([]timeseries.TimedScalar, error) {
	times := timeseries.Times(series)
	seconds := timeseries.SecondsSince(times, times[0])
	values, err := smoothing.SmoothTimeSeries(timeseries.Values(series), seconds, seconds, sigma)
	if err != nil {
		return nil, err
	}
	return timeseries.Zip(times, values)
}

// Steering projects every rotation sample onto the vertical rotation axis.
func Steering(rotations []timeseries.TimedVec3, maxSamples int) ([]timeseries.TimedScalar, error) {
	axis, err := calibration.VerticalAxis(rotations, maxSamples)
	if err != nil {
		return nil, err
	}
	monitoring.Diagf("vertical rotation axis %.4f %.4f %.4f", axis.X, axis.Y, axis.Z)
	rates := calibration.HorizontalTurnRates(rotations, axis)
	if len(rates) != len(rotations) {
		return nil, fmt.Errorf("%w: %d turn rates for %d rotations", ErrLengthMismatch, len(rates), len(rotations))
	}
	out := make([]timeseries.TimedScalar, len(rates))
	for i, r := range rates {
		out[i] = timeseries.TimedScalar{Value: r, TimeUsec: rotations[i].TimeUsec}
	}
	return out, nil
}
