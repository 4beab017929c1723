package linear

// Option configures a LeastSquares model.
type Option func(*LeastSquares)

// WithTol sets the rank tolerance: Fit fails when min|Rjj| / max|Rjj| falls
// to tol or below.
func WithTol(tol float64) Option {
	return func(ls *LeastSquares) {
		ls.tol = tol
	}
}

// WithParallelThreshold sets the sample count from which leverages are
// computed in parallel.
func WithParallelThreshold(n int) Option {
	return func(ls *LeastSquares) {
		ls.parallelThreshold = n
	}
}
