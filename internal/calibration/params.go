package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumParams is the length of the flat parameter vector seen by minimizers.
const NumParams = 9

// Params are the calibration parameters fitted for one window.
type Params struct {
	// GlobalBias is subtracted from acceleration in the navigation frame.
	GlobalBias r3.Vec
	// BodyBias is subtracted in the sensor frame, before rotation.
	BodyBias r3.Vec
	// InitialVelocity is the navigation-frame velocity at window start.
	InitialVelocity r3.Vec
}

// Vector flattens p as [global(3), body(3), initial velocity(3)].
func (p Params) Vector() []float64 {
	return []float64{
		p.GlobalBias.X, p.GlobalBias.Y, p.GlobalBias.Z,
		p.BodyBias.X, p.BodyBias.Y, p.BodyBias.Z,
		p.InitialVelocity.X, p.InitialVelocity.Y, p.InitialVelocity.Z,
	}
}

// ParamsFromVector is the inverse of Params.Vector. It panics if x does not
// have NumParams elements.
func ParamsFromVector(x []float64) Params {
	if len(x) != NumParams {
		panic(fmt.Sprintf("calibration: parameter vector has %d elements, want %d", len(x), NumParams))
	}
	return Params{
		GlobalBias:      r3.Vec{X: x[0], Y: x[1], Z: x[2]},
		BodyBias:        r3.Vec{X: x[3], Y: x[4], Z: x[5]},
		InitialVelocity: r3.Vec{X: x[6], Y: x[7], Z: x[8]},
	}
}

func (p Params) String() string {
	return fmt.Sprintf("global=(%.4g, %.4g, %.4g) body=(%.4g, %.4g, %.4g) v0=(%.4g, %.4g, %.4g)",
		p.GlobalBias.X, p.GlobalBias.Y, p.GlobalBias.Z,
		p.BodyBias.X, p.BodyBias.Y, p.BodyBias.Z,
		p.InitialVelocity.X, p.InitialVelocity.Y, p.InitialVelocity.Z)
}
