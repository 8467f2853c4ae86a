package utils

import (
	"math"
)

// Z95 is the two-sided 95% normal quantile used for confidence half-widths.
const Z95 = 1.96

// Clamp clamps a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BinomialStdErr returns sqrt(p(1-p)/n), the standard error of an
// empirical proportion p over n trials. It returns 0 for n <= 0.
func BinomialStdErr(p float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	v := p * (1 - p)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v / float64(n))
}

// Round rounds a float64 to the specified number of decimal places
func Round(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}
