package calibration

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/testutil"
	"github.com/banshee-data/motionfit/internal/timeseries"
)

func newDriveCalibrator(t *testing.T, d testutil.Drive, reference []timeseries.TimedScalar) *Calibrator {
	t.Helper()
	rot, acc := d.Rotations(), d.Accelerations()
	merged := timeseries.NewMergedTimes(rot, acc)
	c, err := NewCalibrator(reference, rot, acc, merged)
	testutil.AssertNoError(t, err)
	return c
}

func turningDrive() testutil.Drive {
	d := testutil.DefaultDrive()
	d.Seconds = 20
	d.YawRate = 0.1
	d.BodyBias = r3.Vec{X: 0.05, Y: -0.03, Z: 0.02}
	return d
}

func trueParams(d testutil.Drive) Params {
	return Params{
		GlobalBias:      d.TrueGlobalBias(),
		BodyBias:        d.BodyBias,
		InitialVelocity: d.TrueInitialVelocity(),
	}
}

func TestCalibratorCostAtTruth(t *testing.T) {
	t.Run("straight", func(t *testing.T) {
		d := testutil.DefaultDrive()
		c := newDriveCalibrator(t, d, d.Locations())
		assert.Less(t, c.Cost(trueParams(d)), 1e-12)
	})

	t.Run("turning", func(t *testing.T) {
		d := turningDrive()
		c := newDriveCalibrator(t, d, d.Locations())
		// Euler integration of a rotating velocity leaves a small residual.
		assert.Less(t, c.Cost(trueParams(d)), 1e-4)
		assert.Greater(t, c.Cost(Params{}), 1.0)
	})
}

func TestCalibratorSpan(t *testing.T) {
	d := testutil.DefaultDrive()
	ref := d.Locations()[10:15]
	c := newDriveCalibrator(t, d, ref)

	start, end := c.Span()
	merged := c.ImuTimes()
	require.Less(t, start, end)
	assert.GreaterOrEqual(t, merged.MergedEventTimeUsec(start), ref[0].TimeUsec)
	assert.LessOrEqual(t, merged.MergedEventTimeUsec(end-1), ref[len(ref)-1].TimeUsec)
	if start > 0 {
		assert.Less(t, merged.MergedEventTimeUsec(start-1), ref[0].TimeUsec)
	}
	if end < merged.Len() {
		assert.Greater(t, merged.MergedEventTimeUsec(end), ref[len(ref)-1].TimeUsec)
	}
	assert.Equal(t, ref, c.Reference())
}

func TestCalibratorGradientMatchesFiniteDifferences(t *testing.T) {
	d := turningDrive()
	c := newDriveCalibrator(t, d, d.Locations()[2:12])

	p := Params{
		GlobalBias:      r3.Vec{X: 0.1, Y: -0.2, Z: 9.5},
		BodyBias:        r3.Vec{X: 0.3, Y: 0.1, Z: -0.2},
		InitialVelocity: r3.Vec{X: 8, Y: 1, Z: 0.5},
	}
	value, grad := c.CostGrad(p)
	assert.InDelta(t, c.Cost(p), value, 1e-12)

	x := p.Vector()
	analytic := grad.Vector()
	const h = 1e-6
	for i := range x {
		plus := append([]float64(nil), x...)
		minus := append([]float64(nil), x...)
		plus[i] += h
		minus[i] -= h
		numeric := (c.Cost(ParamsFromVector(plus)) - c.Cost(ParamsFromVector(minus))) / (2 * h)
		assert.InDelta(t, numeric, analytic[i], 1e-4*math.Max(1, math.Abs(numeric)), "component %d", i)
	}
}

func TestCalibratorGradientAtZeroVelocity(t *testing.T) {
	d := testutil.DefaultDrive()
	d.Gravity = r3.Vec{}
	c := newDriveCalibrator(t, d, d.Locations()[:1])

	_, grad := c.CostGrad(Params{})
	// The integrated velocity is zero, so the residual pulls along the
	// fallback direction only.
	assert.InDelta(t, -2*d.Speed, grad.InitialVelocity.X, 1e-9)
	assert.Zero(t, grad.InitialVelocity.Y)
	assert.Zero(t, grad.InitialVelocity.Z)
}

func TestCalibratorObjectiveMatchesCost(t *testing.T) {
	d := turningDrive()
	c := newDriveCalibrator(t, d, d.Locations())
	p := trueParams(d)
	p.InitialVelocity.Y = 0.5

	obj := c.Objective()
	assert.Equal(t, c.Cost(p), obj.Func(p.Vector()))

	grad := make([]float64, NumParams)
	obj.Grad(grad, p.Vector())
	_, want := c.CostGrad(p)
	assert.Equal(t, want.Vector(), grad)
}

func TestCalibratorIntegrateTrajectory(t *testing.T) {
	d := testutil.DefaultDrive()
	c := newDriveCalibrator(t, d, d.Locations())
	p := trueParams(d)

	traj := c.IntegrateTrajectory(p.GlobalBias, p.BodyBias, p.InitialVelocity)
	start, end := c.Span()
	require.Equal(t, end-start, traj.Len())
	assert.Equal(t, start, traj.Index(0))

	for i, o := range traj.Outcomes {
		assert.InDelta(t, d.Speed, r3.Norm(o.Velocity), 1e-9, "event %d", i)
	}
	merged := c.ImuTimes()
	last := traj.Outcomes[traj.Len()-1]
	elapsed := float64(merged.MergedEventTimeUsec(traj.Index(traj.Len()-1))-merged.MergedEventTimeUsec(start)) * 1e-6
	assert.InDelta(t, d.Speed*elapsed, last.Displacement.X, 1e-6)
	assert.Equal(t, r3.Vec{}, traj.Outcomes[0].Displacement)
}

func TestNewCalibratorErrors(t *testing.T) {
	d := testutil.DefaultDrive()
	rot, acc := d.Rotations(), d.Accelerations()
	merged := timeseries.NewMergedTimes(rot, acc)

	t.Run("empty reference", func(t *testing.T) {
		_, err := NewCalibrator(nil, rot, acc, merged)
		assert.ErrorIs(t, err, ErrEmptyReference)
	})

	t.Run("reference outside imu", func(t *testing.T) {
		after := []timeseries.TimedScalar{{Value: 10, TimeUsec: d.StartUsec + 3_600_000_000}}
		_, err := NewCalibrator(after, rot, acc, merged)
		assert.True(t, errors.Is(err, ErrNoImuEvents))
	})

	t.Run("mismatched merged index", func(t *testing.T) {
		_, err := NewCalibrator(d.Locations(), rot[:10], acc, merged)
		testutil.AssertError(t, err)
	})
}

func TestCalibratorRecoversSpeed(t *testing.T) {
	for name, d := range map[string]testutil.Drive{
		"straight": testutil.DefaultDrive(),
		"turning":  turningDrive(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ref := d.Locations()[:10]
			c := newDriveCalibrator(t, d, ref)

			fit, err := NewLBFGS(DefaultLBFGSSettings()).Minimize(context.Background(), c.Objective(), make([]float64, NumParams))
			require.NoError(t, err)
			assert.Less(t, fit.Value, 1e-3)

			p := ParamsFromVector(fit.X)
			traj := c.IntegrateTrajectory(p.GlobalBias, p.BodyBias, p.InitialVelocity)
			start, _ := c.Span()
			merged := c.ImuTimes()
			for _, r := range ref {
				k := merged.Nearest(r.TimeUsec, start, start+traj.Len()) - start
				testutil.AssertClose(t, "speed", r3.Norm(traj.Outcomes[k].Velocity), r.Value, 0.1)
			}
		})
	}
}
