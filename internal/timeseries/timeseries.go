// Package timeseries holds the timestamped sensor streams consumed by the
// calibration pipeline, and the merged event index over the IMU streams.
//
// Streams are plain slices sorted by timestamp. Duplicate timestamps are
// permitted and kept; nothing in this package mutates a stream it is given.
package timeseries

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnsorted is returned by CheckSorted when a stream goes back in time.
var ErrUnsorted = errors.New("timeseries: stream is not sorted by timestamp")

// TimedVec3 is a 3D sensor reading (rotation rate in rad/s or raw
// acceleration) with its capture time in microseconds.
type TimedVec3 struct {
	Value    r3.Vec
	TimeUsec int64
}

// Time returns the sample timestamp in microseconds.
func (s TimedVec3) Time() int64 { return s.TimeUsec }

// TimedScalar is a scalar reading with its capture time in microseconds.
// GPS speeds and both pipeline outputs use it.
type TimedScalar struct {
	Value    float64
	TimeUsec int64
}

// Time returns the sample timestamp in microseconds.
func (s TimedScalar) Time() int64 { return s.TimeUsec }

// Timestamped is implemented by every sample type in this package.
type Timestamped interface {
	Time() int64
}

// CheckSorted verifies that timestamps never decrease along the stream.
func CheckSorted[T Timestamped](stream []T) error {
	for i := 1; i < len(stream); i++ {
		if stream[i].Time() < stream[i-1].Time() {
			return fmt.Errorf("%w: index %d at %d us follows %d us",
				ErrUnsorted, i, stream[i].Time(), stream[i-1].Time())
		}
	}
	return nil
}

// Times extracts the timestamps of a stream.
func Times[T Timestamped](stream []T) []int64 {
	out := make([]int64, len(stream))
	for i, s := range stream {
		out[i] = s.Time()
	}
	return out
}

// SecondsSince converts microsecond timestamps to seconds relative to origin.
func SecondsSince(times []int64, origin int64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t-origin) * 1e-6
	}
	return out
}

// Values extracts the scalar values of a stream.
func Values(stream []TimedScalar) []float64 {
	out := make([]float64, len(stream))
	for i, s := range stream {
		out[i] = s.Value
	}
	return out
}

// Zip pairs timestamps with values. Both slices must have the same length.
func Zip(times []int64, values []float64) ([]TimedScalar, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("timeseries: %d timestamps for %d values", len(times), len(values))
	}
	out := make([]TimedScalar, len(times))
	for i := range times {
		out[i] = TimedScalar{Value: values[i], TimeUsec: times[i]}
	}
	return out, nil
}
