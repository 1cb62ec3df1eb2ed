package testutil

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

// StandardGravity is the specific force of a stationary accelerometer, m/s².
const StandardGravity = 9.80665

// Drive describes a synthetic recording. The sensor frame is aligned with
// the vehicle: x forward, z up. The vehicle moves at constant Speed and
// turns at constant YawRate, so the body-frame specific force is constant.
type Drive struct {
	Seconds   float64
	IMURateHz float64
	GPSRateHz float64
	Speed     float64
	YawRate   float64
	// Gravity is the body-frame gravity reading, BodyBias a constant sensor
	// offset. Both end up in the raw accelerations.
	Gravity   r3.Vec
	BodyBias  r3.Vec
	StartUsec int64
}

// DefaultDrive is a straight 50 s drive at 10 m/s with 50 Hz IMU and 1 Hz GPS.
func DefaultDrive() Drive {
	return Drive{
		Seconds:   50,
		IMURateHz: 50,
		GPSRateHz: 1,
		Speed:     10,
		Gravity:   r3.Vec{Z: StandardGravity},
		StartUsec: 1_500_000_000_000_000,
	}
}

func (d Drive) imuPeriodUsec() int64 { return int64(math.Round(1e6 / d.IMURateHz)) }

func (d Drive) imuCount() int { return int(d.Seconds*d.IMURateHz) + 1 }

// Rotations returns the gyroscope stream.
func (d Drive) Rotations() []timeseries.TimedVec3 {
	n := d.imuCount()
	period := d.imuPeriodUsec()
	out := make([]timeseries.TimedVec3, n)
	for i := range out {
		out[i] = timeseries.TimedVec3{
			Value:    r3.Vec{Z: d.YawRate},
			TimeUsec: d.StartUsec + int64(i)*period,
		}
	}
	return out
}

// Accelerations returns the raw accelerometer stream, offset by half an IMU
// period from the rotations so the merged index interleaves them.
func (d Drive) Accelerations() []timeseries.TimedVec3 {
	n := d.imuCount()
	period := d.imuPeriodUsec()
	raw := r3.Add(r3.Add(r3.Vec{Y: d.Speed * d.YawRate}, d.Gravity), d.BodyBias)
	out := make([]timeseries.TimedVec3, n)
	for i := range out {
		out[i] = timeseries.TimedVec3{
			Value:    raw,
			TimeUsec: d.StartUsec + int64(i)*period + period/2,
		}
	}
	return out
}

// Locations returns the GPS speed stream.
func (d Drive) Locations() []timeseries.TimedScalar {
	n := int(d.Seconds * d.GPSRateHz)
	period := int64(math.Round(1e6 / d.GPSRateHz))
	out := make([]timeseries.TimedScalar, n)
	for i := range out {
		out[i] = timeseries.TimedScalar{Value: d.Speed, TimeUsec: d.StartUsec + int64(i)*period}
	}
	return out
}

// TrueGlobalBias is the navigation-frame bias that cancels gravity when
// the body bias is removed separately.
func (d Drive) TrueGlobalBias() r3.Vec { return d.Gravity }

// TrueInitialVelocity is the navigation-frame velocity at the first sample.
func (d Drive) TrueInitialVelocity() r3.Vec { return r3.Vec{X: d.Speed} }
