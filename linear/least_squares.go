// Package linear fits ordinary least squares without intercept through a
// dense QR factorization. It serves as the non-incremental reference for the
// selection criteria, which need the hat matrix diagonal and the trace of the
// inverse Gram matrix.
package linear

import (
	"math"

	"github.com/YuminosukeSato/sparsepce/core/model"
	"github.com/YuminosukeSato/sparsepce/core/parallel"
	"github.com/YuminosukeSato/sparsepce/metrics"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultTolerance is the default rank tolerance on the R diagonal.
	DefaultTolerance = 1e-13

	defaultParallelThreshold = 1000
)

// LeastSquares is y ≈ Xβ fitted by QR. X must have at least as many rows as
// columns and full column rank.
type LeastSquares struct {
	model.BaseEstimator

	tol               float64
	parallelThreshold int

	coef      []float64
	rInv      *mat.TriDense // R⁻¹, k×k upper
	q         *mat.Dense    // thin Q = X R⁻¹, N×k
	residuals []float64
	nFeatures int
}

var _ model.Regressor = (*LeastSquares)(nil)

// NewLeastSquares creates an unfitted model.
func NewLeastSquares(opts ...Option) *LeastSquares {
	ls := &LeastSquares{
		tol:               DefaultTolerance,
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(ls)
	}
	return ls
}

// Fit factorizes X = QR and solves Rβ = Qᵀy.
func (ls *LeastSquares) Fit(X, y mat.Matrix) error {
	ls.Reset()

	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LeastSquares.Fit")
	}
	if ry != r {
		return errors.NewDimensionError("LeastSquares.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LeastSquares.Fit", "y must be a column vector")
	}
	if r < c {
		return errors.NewValueError("LeastSquares.Fit", "fewer samples than columns")
	}
	if !(ls.tol > 0 && ls.tol < 1) {
		return errors.NewValidationError("tol", "must be in (0, 1)", ls.tol)
	}

	var qr mat.QR
	qr.Factorize(X)

	var full mat.Dense
	qr.RTo(&full)
	tri := mat.NewTriDense(c, mat.Upper, nil)
	minDiag, maxDiag := math.Inf(1), 0.0
	for i := 0; i < c; i++ {
		for j := i; j < c; j++ {
			tri.SetTri(i, j, full.At(i, j))
		}
		d := math.Abs(full.At(i, i))
		minDiag = math.Min(minDiag, d)
		maxDiag = math.Max(maxDiag, d)
	}
	if err := errors.CheckNumericalStability("LeastSquares.Fit", []float64{minDiag, maxDiag}, 0); err != nil {
		return err
	}
	if maxDiag == 0 || minDiag/maxDiag <= ls.tol {
		return errors.Wrapf(errors.ErrSingularMatrix, "LeastSquares.Fit: diagonal ratio %.3g", errors.SafeDivide(minDiag, maxDiag))
	}

	yVec := mat.NewVecDense(r, mat.Col(nil, 0, y))
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yVec); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	rInv := mat.NewTriDense(c, mat.Upper, nil)
	if err := rInv.InverseTri(tri); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}
	q := mat.NewDense(r, c, nil)
	q.Mul(X, rInv)

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	res := make([]float64, r)
	for i := range res {
		res[i] = yVec.AtVec(i) - fitted.AtVec(i)
	}

	ls.coef = mat.Col(nil, 0, &beta)
	ls.rInv = rInv
	ls.q = q
	ls.residuals = res
	ls.nFeatures = c
	ls.SetFitted()
	return nil
}

// Coefficients returns one value per column of X, or nil before Fit.
func (ls *LeastSquares) Coefficients() []float64 {
	if !ls.IsFitted() {
		return nil
	}
	return append([]float64(nil), ls.coef...)
}

// Residuals returns y - Xβ on the training sample.
func (ls *LeastSquares) Residuals() []float64 {
	if !ls.IsFitted() {
		return nil
	}
	return append([]float64(nil), ls.residuals...)
}

// ResidualSumOfSquares returns ‖y - Xβ‖² on the training sample.
func (ls *LeastSquares) ResidualSumOfSquares() float64 {
	return floats.Dot(ls.residuals, ls.residuals)
}

// Leverages returns the diagonal of the hat matrix X(XᵀX)⁻¹Xᵀ, the squared
// row norms of the thin Q factor.
func (ls *LeastSquares) Leverages() ([]float64, error) {
	if !ls.IsFitted() {
		return nil, errors.Wrap(errors.ErrNotFitted, "LeastSquares.Leverages")
	}
	n, _ := ls.q.Dims()
	h := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, ls.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := ls.q.RawRowView(i)
			h[i] = floats.Dot(row, row)
		}
	})
	return h, nil
}

// InverseGramTrace returns tr((XᵀX)⁻¹) = ‖R⁻¹‖²_F.
func (ls *LeastSquares) InverseGramTrace() (float64, error) {
	if !ls.IsFitted() {
		return 0, errors.Wrap(errors.ErrNotFitted, "LeastSquares.InverseGramTrace")
	}
	var sum float64
	for i := 0; i < ls.nFeatures; i++ {
		for j := i; j < ls.nFeatures; j++ {
			v := ls.rInv.At(i, j)
			sum += v * v
		}
	}
	return sum, nil
}

// Predict returns Xβ as an n×1 matrix.
func (ls *LeastSquares) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !ls.IsFitted() {
		return nil, errors.Wrap(errors.ErrNotFitted, "LeastSquares.Predict")
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "LeastSquares.Predict")
	}
	if c != ls.nFeatures {
		return nil, errors.NewDimensionError("LeastSquares.Predict", ls.nFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	out.Mul(X, mat.NewDense(c, 1, ls.coef))
	return out, nil
}

// Score returns the coefficient of determination on (X, y).
func (ls *LeastSquares) Score(X, y mat.Matrix) (float64, error) {
	pred, err := ls.Predict(X)
	if err != nil {
		return 0, err
	}
	r, cy := y.Dims()
	if cy != 1 {
		return 0, errors.NewValueError("LeastSquares.Score", "y must be a column vector")
	}
	pr, _ := pred.Dims()
	if pr != r {
		return 0, errors.NewDimensionError("LeastSquares.Score", pr, r, 0)
	}
	return metrics.R2Score(
		mat.NewVecDense(r, mat.Col(nil, 0, y)),
		mat.NewVecDense(r, mat.Col(nil, 0, pred)),
	)
}
