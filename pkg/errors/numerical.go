package errors

import (
	"math"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// ClampInf replaces +Inf entries of values, in place, by the largest finite
// entry present. When no entry is finite, fallback is used.
func ClampInf(values []float64, fallback float64) []float64 {
	maxFinite := math.Inf(-1)
	for _, v := range values {
		if !math.IsInf(v, 0) && !math.IsNaN(v) && v > maxFinite {
			maxFinite = v
		}
	}
	if math.IsInf(maxFinite, -1) {
		maxFinite = fallback
	}
	for i, v := range values {
		if math.IsInf(v, 1) {
			values[i] = maxFinite
		}
	}
	return values
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
