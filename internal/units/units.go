// Package units converts the speeds produced by the fit into display units.
// All computation and JSON output stay in metres per second.
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

const (
	mpsToMPH  = 2.2369362920544
	mpsToKMPH = 3.6
	// knotToMPS is one international knot (1852 m per hour) in m/s.
	knotToMPS = 1852.0 / 3600.0
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Parse validates unit and returns it, defaulting the empty string to MPS.
func Parse(unit string) (string, error) {
	if unit == "" {
		return MPS, nil
	}
	if !IsValid(unit) {
		return "", fmt.Errorf("invalid units %q (valid: %s)", unit, GetValidUnitsString())
	}
	return unit, nil
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * mpsToKMPH
	default:
		return speedMPS
	}
}

// ConvertSpeeds converts every value of speedsMPS into a new slice.
func ConvertSpeeds(speedsMPS []float64, targetUnits string) []float64 {
	out := make([]float64, len(speedsMPS))
	for i, v := range speedsMPS {
		out[i] = ConvertSpeed(v, targetUnits)
	}
	return out
}

// KnotsToMPS converts a speed over ground in knots, as reported by NMEA
// receivers, to m/s.
func KnotsToMPS(knots float64) float64 {
	return knots * knotToMPS
}

// Label returns the axis label for a unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}
