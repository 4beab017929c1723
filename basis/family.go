package basis

import "math"

// Family is a sequence of univariate polynomials indexed by degree. Every
// family returns 1 for degree 0.
type Family interface {
	Evaluate(degree int, x float64) float64
	Name() string
}

// Monomial is the family x^n. It is not orthogonal and mostly useful for small
// dictionaries and tests.
type Monomial struct{}

// Evaluate implements Family.
func (Monomial) Evaluate(degree int, x float64) float64 {
	v := 1.0
	for i := 0; i < degree; i++ {
		v *= x
	}
	return v
}

// Name implements Family.
func (Monomial) Name() string { return "M" }

// Legendre is the Legendre family, orthonormal for the uniform distribution on
// [-1, 1].
type Legendre struct{}

// Evaluate implements Family.
func (Legendre) Evaluate(degree int, x float64) float64 {
	if degree == 0 {
		return 1
	}
	// (n+1) P_{n+1} = (2n+1) x P_n - n P_{n-1}
	prev, cur := 1.0, x
	for n := 1; n < degree; n++ {
		fn := float64(n)
		prev, cur = cur, ((2*fn+1)*x*cur-fn*prev)/(fn+1)
	}
	return math.Sqrt(2*float64(degree)+1) * cur
}

// Name implements Family.
func (Legendre) Name() string { return "P" }

// Hermite is the probabilists' Hermite family, orthonormal for the standard
// normal distribution.
type Hermite struct{}

// Evaluate implements Family.
func (Hermite) Evaluate(degree int, x float64) float64 {
	if degree == 0 {
		return 1
	}
	// He_{n+1} = x He_n - n He_{n-1}, normalised by sqrt(n!) on the fly
	prev, cur := 1.0, x
	for n := 1; n < degree; n++ {
		fn := float64(n)
		prev, cur = cur, (x*cur-math.Sqrt(fn)*prev)/math.Sqrt(fn+1)
	}
	return cur
}

// Name implements Family.
func (Hermite) Name() string { return "He" }

// Laguerre is the Laguerre family, orthonormal for the exponential
// distribution with unit rate.
type Laguerre struct{}

// Evaluate implements Family.
func (Laguerre) Evaluate(degree int, x float64) float64 {
	if degree == 0 {
		return 1
	}
	// (n+1) L_{n+1} = (2n+1-x) L_n - n L_{n-1}
	prev, cur := 1.0, 1-x
	for n := 1; n < degree; n++ {
		fn := float64(n)
		prev, cur = cur, ((2*fn+1-x)*cur-fn*prev)/(fn+1)
	}
	return cur
}

// Name implements Family.
func (Laguerre) Name() string { return "L" }
