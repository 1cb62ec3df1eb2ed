package calibration

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

// ErrEmptyStream is returned when the rotation stream has no samples.
var ErrEmptyStream = errors.New("calibration: empty rotation stream")

// DefaultPCAMaxSamples caps the number of rotations fed to the axis
// estimator.
const DefaultPCAMaxSamples = 500000

// PrincipalRotationAxes returns a 3x3 matrix whose rows are orthonormal
// rotation axes sorted by decreasing energy. Row 0 is the dominant rotation
// axis, assumed to be the vehicle vertical.
//
// The axes are the eigenvectors of the uncentered second-moment matrix of
// the rotation vectors, so a constant rotation still has a well-defined
// dominant axis. Streams longer than maxSamples are down-sampled with a
// uniform stride. Each axis is signed so that its largest component is
// positive.
//
// Near-isotropic rotation data has no stable dominant axis; the result is
// still orthonormal but may change with small perturbations of the input.
func PrincipalRotationAxes(rotations []timeseries.TimedVec3, maxSamples int) (*mat.Dense, error) {
	if len(rotations) == 0 {
		return nil, ErrEmptyStream
	}
	stride := 1
	if maxSamples > 0 && len(rotations) > maxSamples {
		stride = (len(rotations) + maxSamples - 1) / maxSamples
	}

	var moments [3][3]float64
	n := 0
	for i := 0; i < len(rotations); i += stride {
		v := rotations[i].Value
		c := [3]float64{v.X, v.Y, v.Z}
		for a := 0; a < 3; a++ {
			for b := a; b < 3; b++ {
				moments[a][b] += c[a] * c[b]
			}
		}
		n++
	}

	scatter := mat.NewSymDense(3, nil)
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			scatter.SetSym(a, b, moments[a][b]/float64(n))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(scatter, true) {
		return nil, errors.New("calibration: rotation moment eigendecomposition failed")
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back in ascending order.
	axes := mat.NewDense(3, 3, nil)
	for row := 0; row < 3; row++ {
		col := 2 - row
		axis := canonicalSign(r3.Vec{X: vectors.At(0, col), Y: vectors.At(1, col), Z: vectors.At(2, col)})
		axes.SetRow(row, []float64{axis.X, axis.Y, axis.Z})
	}
	return axes, nil
}

// VerticalAxis returns row 0 of PrincipalRotationAxes.
func VerticalAxis(rotations []timeseries.TimedVec3, maxSamples int) (r3.Vec, error) {
	axes, err := PrincipalRotationAxes(rotations, maxSamples)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: axes.At(0, 0), Y: axes.At(0, 1), Z: axes.At(0, 2)}, nil
}

// canonicalSign flips v so that its largest-magnitude component is positive.
func canonicalSign(v r3.Vec) r3.Vec {
	largest := v.X
	if math.Abs(v.Y) > math.Abs(largest) {
		largest = v.Y
	}
	if math.Abs(v.Z) > math.Abs(largest) {
		largest = v.Z
	}
	if largest < 0 {
		return r3.Scale(-1, v)
	}
	return v
}

// HorizontalTurnRates projects every rotation sample onto axis. With the
// vertical axis this gives the rotation rate in the horizontal plane, the
// steering proxy. The result has one value per input sample.
func HorizontalTurnRates(rotations []timeseries.TimedVec3, axis r3.Vec) []float64 {
	out := make([]float64, len(rotations))
	for i, s := range rotations {
		out[i] = r3.Dot(s.Value, axis)
	}
	return out
}
