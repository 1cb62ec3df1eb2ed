// Package smoothing resamples a noisy time series with a Gaussian kernel.
package smoothing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// kernelRadius is the kernel support in units of sigma.
const kernelRadius = 4

var (
	// ErrLengthMismatch is returned when values and input times differ in length.
	ErrLengthMismatch = errors.New("smoothing: values and times differ in length")
	// ErrInvalidSigma is returned for a non-positive kernel width.
	ErrInvalidSigma = errors.New("smoothing: sigma must be positive")
)

// SmoothTimeSeries evaluates the Gaussian-weighted mean of values at every
// output time. inputTimes must be sorted ascending; all times are in
// seconds on a common origin. Samples further than 4 sigma from an output
// time are ignored, except that the nearest sample always contributes so
// every output is defined.
func SmoothTimeSeries(values, inputTimes, outputTimes []float64, sigma float64) ([]float64, error) {
	if len(values) != len(inputTimes) {
		return nil, fmt.Errorf("%w: %d values, %d times", ErrLengthMismatch, len(values), len(inputTimes))
	}
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigma, sigma)
	}
	out := make([]float64, len(outputTimes))
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}

	radius := kernelRadius * sigma
	denom := 2 * sigma * sigma
	var weights []float64
	for i, t := range outputTimes {
		lo := sort.SearchFloat64s(inputTimes, t-radius)
		hi := sort.Search(len(inputTimes), func(j int) bool { return inputTimes[j] > t+radius })
		if lo >= hi {
			n := nearest(inputTimes, t)
			out[i] = values[n]
			continue
		}
		weights = weights[:0]
		for j := lo; j < hi; j++ {
			dt := inputTimes[j] - t
			weights = append(weights, math.Exp(-dt*dt/denom))
		}
		out[i] = stat.Mean(values[lo:hi], weights)
	}
	return out, nil
}

// nearest returns the index of the input time closest to t, preferring the
// earlier one on ties.
func nearest(times []float64, t float64) int {
	i := sort.SearchFloat64s(times, t)
	switch {
	case i == 0:
		return 0
	case i == len(times):
		return len(times) - 1
	case t-times[i-1] <= times[i]-t:
		return i - 1
	default:
		return i
	}
}
