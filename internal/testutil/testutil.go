// Package testutil provides shared test utilities and fixtures.
//
// Besides the assertion helpers it generates synthetic drives: IMU and GPS
// streams for a vehicle moving at constant speed and yaw rate, with known
// gravity and sensor bias, so calibration results can be checked against
// ground truth.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test if got is further than tol from want.
func AssertClose(t testing.TB, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", name, got, want, tol)
	}
}

// AssertAllClose checks every element of got against want.
func AssertAllClose(t testing.TB, name string, got []float64, want, tol float64) {
	t.Helper()
	bad := 0
	for i, v := range got {
		if math.IsNaN(v) || math.Abs(v-want) > tol {
			if bad < 5 {
				t.Errorf("%s[%d] = %g, want %g ± %g", name, i, v, want, tol)
			}
			bad++
		}
	}
	if bad > 5 {
		t.Errorf("%s: %d of %d values out of tolerance", name, bad, len(got))
	}
}
