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

// CheckMatrix reports the non-finite entries of m, at most ten, as a
// NumericalInstabilityError. iteration is the matrix column of the first one.
func CheckMatrix(operation string, m interface {
	Dims() (int, int)
	At(int, int) float64
}) error {
	const maxReported = 10

	rows, cols := m.Dims()
	var bad []float64
	first := -1
	for j := 0; j < cols && len(bad) < maxReported; j++ {
		for i := 0; i < rows && len(bad) < maxReported; i++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				if first < 0 {
					first = j
				}
				bad = append(bad, v)
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, first)
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-300 {
		return 0
	}
	return numerator / denominator
}
