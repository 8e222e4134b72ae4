// Package temperature converts between the Toon wire format, hundredths
// of a degree Celsius (2155 = 21.55°C), and plain degrees.
package temperature

import (
	"math"
)

// FromHundredths converts a wire value in hundredths of a degree to degrees
// rounded to one decimal. Rounding is half away from zero: 2155 → 21.6.
func FromHundredths(v float64) float64 {
	return math.Round(v/10.0) / 10.0
}

// ToHundredths converts degrees to the wire format in hundredths of a degree.
func ToHundredths(deg float64) int {
	return int(math.Round(deg * 100.0))
}

// SnapToHalf rounds a requested temperature to the nearest half degree, the
// granularity the thermostat accepts for setpoints.
func SnapToHalf(deg float64) float64 {
	return math.Round(deg*2.0) / 2.0
}
