package calibration

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

func constantRotations(n int, v r3.Vec) []timeseries.TimedVec3 {
	out := make([]timeseries.TimedVec3, n)
	for i := range out {
		out[i] = timeseries.TimedVec3{Value: v, TimeUsec: int64(i) * 10_000}
	}
	return out
}

// noisyYawRotations simulates a turning vehicle: strong rotation about
// axis plus small isotropic noise.
func noisyYawRotations(rng *rand.Rand, n int, axis r3.Vec) []timeseries.TimedVec3 {
	out := make([]timeseries.TimedVec3, n)
	for i := range out {
		yaw := 0.5 * math.Sin(float64(i)/50)
		noise := r3.Vec{X: 0.02 * rng.NormFloat64(), Y: 0.02 * rng.NormFloat64(), Z: 0.02 * rng.NormFloat64()}
		out[i] = timeseries.TimedVec3{Value: r3.Add(r3.Scale(yaw, axis), noise), TimeUsec: int64(i) * 10_000}
	}
	return out
}

func TestVerticalAxisConstantRotation(t *testing.T) {
	rotations := constantRotations(100, r3.Vec{Z: 1})

	axis, err := VerticalAxis(rotations, DefaultPCAMaxSamples)
	require.NoError(t, err)
	assert.InDelta(t, 0, axis.X, 1e-9)
	assert.InDelta(t, 0, axis.Y, 1e-9)
	assert.InDelta(t, 1, axis.Z, 1e-9)

	rates := HorizontalTurnRates(rotations, axis)
	require.Len(t, rates, len(rotations))
	for i, r := range rates {
		assert.InDelta(t, 1.0, r, 1e-9, "sample %d", i)
	}
}

func TestVerticalAxisSignIsCanonical(t *testing.T) {
	rotations := constantRotations(20, r3.Vec{Z: -2})

	axis, err := VerticalAxis(rotations, DefaultPCAMaxSamples)
	require.NoError(t, err)
	assert.InDelta(t, 1, axis.Z, 1e-9)

	for _, r := range HorizontalTurnRates(rotations, axis) {
		assert.InDelta(t, -2.0, r, 1e-9)
	}
}

func TestPrincipalRotationAxesOrthonormal(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tilted := r3.Unit(r3.Vec{X: 0.1, Y: -0.2, Z: 1})
	rotations := noisyYawRotations(rng, 5000, tilted)

	axes, err := PrincipalRotationAxes(rotations, DefaultPCAMaxSamples)
	require.NoError(t, err)

	var gram mat.Dense
	gram.Mul(axes, axes.T())
	assert.True(t, mat.EqualApprox(&gram, eye3(), 1e-9), "axes are not orthonormal:\n%v", mat.Formatted(&gram))

	vertical := r3.Vec{X: axes.At(0, 0), Y: axes.At(0, 1), Z: axes.At(0, 2)}
	assert.InDelta(t, 1, r3.Norm(vertical), 1e-9)
	assert.InDelta(t, 1, r3.Dot(vertical, tilted), 1e-3, "dominant axis should follow the yaw axis")
}

func TestPrincipalRotationAxesDownsampling(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	axis := r3.Unit(r3.Vec{X: 0.3, Z: 1})
	rotations := noisyYawRotations(rng, 20000, axis)

	full, err := VerticalAxis(rotations, 0)
	require.NoError(t, err)
	sampled, err := VerticalAxis(rotations, 1000)
	require.NoError(t, err)

	assert.InDelta(t, 1, r3.Norm(sampled), 1e-9)
	assert.InDelta(t, 1, r3.Dot(full, sampled), 1e-3)
}

func TestPrincipalRotationAxesEmpty(t *testing.T) {
	_, err := PrincipalRotationAxes(nil, DefaultPCAMaxSamples)
	assert.True(t, errors.Is(err, ErrEmptyStream))

	_, err = VerticalAxis([]timeseries.TimedVec3{}, 10)
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestHorizontalTurnRatesBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	rotations := make([]timeseries.TimedVec3, 500)
	for i := range rotations {
		rotations[i].Value = r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
	}
	axis, err := VerticalAxis(rotations, DefaultPCAMaxSamples)
	require.NoError(t, err)

	rates := HorizontalTurnRates(rotations, axis)
	require.Len(t, rates, len(rotations))
	for i, r := range rates {
		bound := r3.Norm(rotations[i].Value)
		assert.LessOrEqual(t, math.Abs(r), bound+1e-12, "sample %d", i)
	}
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
