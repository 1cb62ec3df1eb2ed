package calibration

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// mat3 is a row-major 3x3 matrix. The integration inner loop runs once per
// IMU event and keeps these on the stack.
type mat3 [3][3]float64

func (m mat3) mulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (m mat3) mulVecTrans(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

func (m mat3) addScaled(o mat3, f float64) mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += f * o[i][j]
		}
	}
	return m
}

// rotationMatrix returns the body-to-navigation rotation of the unit
// quaternion q.
func rotationMatrix(q quat.Number) mat3 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// integrateRotation advances orientation q by the body-frame rotation rate
// omega (rad/s) held for dt seconds.
func integrateRotation(q quat.Number, omega r3.Vec, dt float64) quat.Number {
	rate := r3.Norm(omega)
	if rate == 0 || dt == 0 {
		return q
	}
	step := quat.Number(r3.NewRotation(rate*dt, omega))
	q = quat.Mul(q, step)
	// Renormalise to stop round-off from accumulating over long spans.
	if n := quat.Abs(q); n != 0 && math.Abs(n-1) > 1e-12 {
		q = quat.Scale(1/n, q)
	}
	return q
}
