package calibration

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

var (
	// ErrEmptyReference is returned for a window without GPS references.
	ErrEmptyReference = errors.New("calibration: empty reference window")
	// ErrNoImuEvents is returned when no IMU event falls inside the window.
	ErrNoImuEvents = errors.New("calibration: no IMU events inside reference window")
)

// zeroSpeedDirection is the descent direction used for a reference whose
// integrated velocity is exactly zero, where the speed has no gradient.
var zeroSpeedDirection = r3.Vec{X: 1}

// Outcome is the integrated motion state at one merged IMU event.
type Outcome struct {
	Velocity     r3.Vec
	Displacement r3.Vec
}

// Trajectory holds one Outcome per merged index in [Start, Start+len(Outcomes)).
type Trajectory struct {
	Start    int
	Outcomes []Outcome
}

// Len returns the number of integrated events.
func (t Trajectory) Len() int { return len(t.Outcomes) }

// Index returns the merged index of the i-th outcome.
func (t Trajectory) Index(i int) int { return t.Start + i }

// Calibrator is the calibration cost function for one window of GPS speed
// references. It borrows the IMU streams and the shared merged index.
//
// The integration span covers every merged event with a timestamp between
// the first and last reference of the window. Velocity at span event k is
//
//	v_k = v0 - T_k*global - M_k*body + S_k
//
// where T_k is elapsed time, M_k the time integral of the body-to-navigation
// rotation and S_k the integral of the rotated raw acceleration. All three
// depend only on the IMU data and are computed once in NewCalibrator.
type Calibrator struct {
	reference     []timeseries.TimedScalar
	rotations     []timeseries.TimedVec3
	accelerations []timeseries.TimedVec3
	merged        *timeseries.MergedTimes

	start, end int

	elapsed []float64
	rotated []mat3
	gained  []r3.Vec

	// matches holds the span-relative event nearest to each reference.
	matches []int
}

// NewCalibrator prepares the cost function for the reference window.
// merged must have been built from rotations and accelerations.
func NewCalibrator(reference []timeseries.TimedScalar, rotations, accelerations []timeseries.TimedVec3, merged *timeseries.MergedTimes) (*Calibrator, error) {
	if len(reference) == 0 {
		return nil, ErrEmptyReference
	}
	if merged.Len() != len(rotations)+len(accelerations) {
		return nil, fmt.Errorf("calibration: merged index has %d events for %d rotations and %d accelerations",
			merged.Len(), len(rotations), len(accelerations))
	}
	first, last := reference[0].TimeUsec, reference[len(reference)-1].TimeUsec
	start, end := merged.LowerBound(first), merged.UpperBound(last)
	if start >= end {
		return nil, fmt.Errorf("%w: [%d, %d] us", ErrNoImuEvents, first, last)
	}

	c := &Calibrator{
		reference:     reference,
		rotations:     rotations,
		accelerations: accelerations,
		merged:        merged,
		start:         start,
		end:           end,
	}
	c.precompute()

	c.matches = make([]int, len(reference))
	for g, ref := range reference {
		c.matches[g] = merged.Nearest(ref.TimeUsec, start, end) - start
	}
	return c, nil
}

// seed returns the rotation rate and acceleration in effect at the span
// start: the latest samples at or before it, else the first ones after.
func (c *Calibrator) seed() (omega, accel r3.Vec) {
	ev := c.merged.Event(c.start)
	switch {
	case ev.LastRotation >= 0:
		omega = c.rotations[ev.LastRotation].Value
	case len(c.rotations) > 0:
		omega = c.rotations[0].Value
	}
	switch {
	case ev.LastAcceleration >= 0:
		accel = c.accelerations[ev.LastAcceleration].Value
	case len(c.accelerations) > 0:
		accel = c.accelerations[0].Value
	}
	return omega, accel
}

// precompute integrates orientation over the span with forward Euler steps
// on the actual event spacing and accumulates T_k, M_k and S_k.
func (c *Calibrator) precompute() {
	n := c.end - c.start
	c.elapsed = make([]float64, n)
	c.rotated = make([]mat3, n)
	c.gained = make([]r3.Vec, n)

	omega, accel := c.seed()
	q := quat.Number{Real: 1}
	var (
		elapsed float64
		rotated mat3
		gained  r3.Vec
	)
	for k := 1; k < n; k++ {
		idx := c.start + k
		dt := float64(c.merged.MergedEventTimeUsec(idx)-c.merged.MergedEventTimeUsec(idx-1)) * 1e-6

		r := rotationMatrix(q)
		elapsed += dt
		rotated = rotated.addScaled(r, dt)
		gained = r3.Add(gained, r3.Scale(dt, r.mulVec(accel)))
		q = integrateRotation(q, omega, dt)

		ev := c.merged.Event(idx)
		if ev.Kind == timeseries.KindRotation {
			omega = c.rotations[ev.Source].Value
		} else {
			accel = c.accelerations[ev.Source].Value
		}

		c.elapsed[k] = elapsed
		c.rotated[k] = rotated
		c.gained[k] = gained
	}
}

func (c *Calibrator) velocityAt(k int, p Params) r3.Vec {
	v := r3.Add(p.InitialVelocity, c.gained[k])
	v = r3.Sub(v, r3.Scale(c.elapsed[k], p.GlobalBias))
	return r3.Sub(v, c.rotated[k].mulVec(p.BodyBias))
}

// Cost returns the mean squared difference between the integrated speed
// and the reference speed over the window's references.
func (c *Calibrator) Cost(p Params) float64 {
	var sum float64
	for g, ref := range c.reference {
		residual := r3.Norm(c.velocityAt(c.matches[g], p)) - ref.Value
		sum += residual * residual
	}
	return sum / float64(len(c.reference))
}

// CostGrad returns Cost(p) and its gradient with respect to p.
func (c *Calibrator) CostGrad(p Params) (float64, Params) {
	var (
		sum  float64
		grad Params
	)
	for g, ref := range c.reference {
		k := c.matches[g]
		v := c.velocityAt(k, p)
		speed := r3.Norm(v)
		residual := speed - ref.Value
		sum += residual * residual

		dir := zeroSpeedDirection
		if speed > 0 {
			dir = r3.Scale(1/speed, v)
		}
		dv := r3.Scale(2*residual, dir)
		grad.InitialVelocity = r3.Add(grad.InitialVelocity, dv)
		grad.GlobalBias = r3.Sub(grad.GlobalBias, r3.Scale(c.elapsed[k], dv))
		grad.BodyBias = r3.Sub(grad.BodyBias, c.rotated[k].mulVecTrans(dv))
	}
	n := float64(len(c.reference))
	grad.GlobalBias = r3.Scale(1/n, grad.GlobalBias)
	grad.BodyBias = r3.Scale(1/n, grad.BodyBias)
	grad.InitialVelocity = r3.Scale(1/n, grad.InitialVelocity)
	return sum / n, grad
}

// Objective adapts the cost function to the flat parameter vector.
func (c *Calibrator) Objective() Objective {
	return Objective{
		Func: func(x []float64) float64 {
			return c.Cost(ParamsFromVector(x))
		},
		Grad: func(grad, x []float64) {
			_, g := c.CostGrad(ParamsFromVector(x))
			copy(grad, g.Vector())
		},
	}
}

// IntegrateTrajectory returns the velocity and displacement at every merged
// event of the span under the given calibration parameters.
func (c *Calibrator) IntegrateTrajectory(globalBias, bodyBias, initialVelocity r3.Vec) Trajectory {
	p := Params{GlobalBias: globalBias, BodyBias: bodyBias, InitialVelocity: initialVelocity}
	n := c.end - c.start
	out := make([]Outcome, n)
	var disp r3.Vec
	prev := p.InitialVelocity
	for k := 0; k < n; k++ {
		v := c.velocityAt(k, p)
		if k > 0 {
			dt := c.elapsed[k] - c.elapsed[k-1]
			disp = r3.Add(disp, r3.Scale(dt, prev))
		}
		out[k] = Outcome{Velocity: v, Displacement: disp}
		prev = v
	}
	return Trajectory{Start: c.start, Outcomes: out}
}

// ImuTimes returns the merged index shared by every window.
func (c *Calibrator) ImuTimes() *timeseries.MergedTimes { return c.merged }

// Span returns the merged index range [start, end) integrated by c.
func (c *Calibrator) Span() (start, end int) { return c.start, c.end }

// Reference returns the GPS references of the window.
func (c *Calibrator) Reference() []timeseries.TimedScalar { return c.reference }
