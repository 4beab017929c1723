// Package lsq maintains a thin QR factorization of the active columns of a
// design matrix and refits least squares after single-column changes.
//
// Adding a column costs O(N·k) (Gram–Schmidt with one reorthogonalisation
// pass), removing one costs O(N·k) as well (Givens rotations restore the
// triangle and are mirrored on Q). Neither rebuilds the factorization.
package lsq

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultTolerance is the relative residual below which a new column is
	// considered linearly dependent on the active ones.
	DefaultTolerance = 1e-10
	// DefaultSingularTolerance bounds min|Rjj| / max|Rjj| in Solve.
	DefaultSingularTolerance = 1e-13
)

// DependentColumnError is returned by AddColumn when the new column lies in the
// span of the active columns. It is a NumericalInstability kind error.
type DependentColumnError struct {
	Rank     int
	Residual float64 // norm of the orthogonal remainder
	Norm     float64 // norm of the column
	cause    error
}

func (e *DependentColumnError) Error() string {
	return fmt.Sprintf("sparsepce: column at rank %d is linearly dependent on the active columns (relative residual %.3g)",
		e.Rank, errors.SafeDivide(e.Residual, e.Norm))
}

// Unwrap exposes the underlying NumericalInstabilityError.
func (e *DependentColumnError) Unwrap() error { return e.cause }

// Option configures a Solver.
type Option func(*Solver)

// WithTolerance sets the linear-dependence tolerance used by AddColumn.
func WithTolerance(tol float64) Option {
	return func(s *Solver) {
		s.tol = tol
	}
}

// WithSingularTolerance sets the conditioning tolerance used by Solve.
func WithSingularTolerance(tol float64) Option {
	return func(s *Solver) {
		s.singularTol = tol
	}
}

// Solver holds A = Q·R for the active columns A (N×k), with Q orthonormal and
// R upper triangular. Column j of A is column j of the factorization: the
// solver never reorders columns.
type Solver struct {
	n           int
	tol         float64
	singularTol float64

	q [][]float64 // k columns of length n
	r [][]float64 // r[j] holds rows 0..j of column j
}

// NewSolver creates an empty solver for samples of size n.
func NewSolver(n int, opts ...Option) (*Solver, error) {
	s := &Solver{n: n, tol: DefaultTolerance, singularTol: DefaultSingularTolerance}
	for _, opt := range opts {
		opt(s)
	}
	if n <= 0 {
		return nil, errors.NewValidationError("n", "sample size must be positive", n)
	}
	if s.tol <= 0 || s.tol >= 1 || math.IsNaN(s.tol) {
		return nil, errors.NewValidationError("tolerance", "must lie in (0, 1)", s.tol)
	}
	if s.singularTol <= 0 || s.singularTol >= 1 || math.IsNaN(s.singularTol) {
		return nil, errors.NewValidationError("singularTolerance", "must lie in (0, 1)", s.singularTol)
	}
	return s, nil
}

// Size returns the number of active columns.
func (s *Solver) Size() int { return len(s.q) }

// SampleSize returns N.
func (s *Solver) SampleSize() int { return s.n }

// Reset drops every column.
func (s *Solver) Reset() {
	s.q = nil
	s.r = nil
}

// Clone returns an independent copy of the solver.
func (s *Solver) Clone() *Solver {
	c := &Solver{
		n:           s.n,
		tol:         s.tol,
		singularTol: s.singularTol,
		q:           make([][]float64, len(s.q)),
		r:           make([][]float64, len(s.r)),
	}
	for j := range s.q {
		c.q[j] = append([]float64(nil), s.q[j]...)
		c.r[j] = append([]float64(nil), s.r[j]...)
	}
	return c
}

// AddColumn appends col as the last active column. On failure the solver is
// left unchanged.
func (s *Solver) AddColumn(col []float64) error {
	if len(col) != s.n {
		return errors.NewDimensionError("Solver.AddColumn", s.n, len(col), 0)
	}
	if err := errors.CheckNumericalStability("Solver.AddColumn", col, s.Size()); err != nil {
		return err
	}

	k := s.Size()
	norm := floats.Norm(col, 2)
	v := append([]float64(nil), col...)
	rcol := make([]float64, k+1)

	// modified Gram-Schmidt, run twice
	for pass := 0; pass < 2; pass++ {
		for j := 0; j < k; j++ {
			c := floats.Dot(s.q[j], v)
			rcol[j] += c
			floats.AddScaled(v, -c, s.q[j])
		}
	}

	rho := floats.Norm(v, 2)
	if norm == 0 || rho <= s.tol*norm {
		return errors.WithStack(&DependentColumnError{
			Rank:     k,
			Residual: rho,
			Norm:     norm,
			cause:    errors.NewNumericalInstabilityError("Solver.AddColumn", []float64{rho, norm}, k),
		})
	}

	floats.Scale(1/rho, v)
	rcol[k] = rho
	s.q = append(s.q, v)
	s.r = append(s.r, rcol)
	return nil
}

// RemoveColumn deletes the active column at position pos. Later columns shift
// down by one position.
func (s *Solver) RemoveColumn(pos int) error {
	k := s.Size()
	if pos < 0 || pos >= k {
		return errors.NewValueError("Solver.RemoveColumn",
			fmt.Sprintf("position %d out of range [0, %d)", pos, k))
	}

	// Dropping column pos of R leaves columns pos.. upper Hessenberg.
	r := append(s.r[:pos:pos], s.r[pos+1:]...)
	q := s.q

	for j := pos; j < k-1; j++ {
		c, sn, rr, _ := blas64.Rotg(r[j][j], r[j][j+1])
		r[j][j] = rr
		r[j] = r[j][:j+1]
		for l := j + 1; l < k-1; l++ {
			x, y := r[l][j], r[l][j+1]
			r[l][j] = c*x + sn*y
			r[l][j+1] = c*y - sn*x
		}
		blas64.Rot(
			blas64.Vector{N: s.n, Inc: 1, Data: q[j]},
			blas64.Vector{N: s.n, Inc: 1, Data: q[j+1]},
			c, sn,
		)
	}

	s.r = r
	s.q = q[:k-1]
	return nil
}

// Apply updates the factorization by d, fetching the values of added columns
// through column (called with the added rank). Removals run first in
// descending rank order, then additions in ascending order. The update is
// atomic: on error the solver is unchanged.
func (s *Solver) Apply(d Delta, column func(rank int) ([]float64, error)) error {
	if err := d.validateOrdered(s.Size()); err != nil {
		return err
	}

	work := s.Clone()
	for i := len(d.Removed) - 1; i >= 0; i-- {
		if err := work.RemoveColumn(d.Removed[i]); err != nil {
			return err
		}
	}
	for _, rank := range d.Added {
		col, err := column(rank)
		if err != nil {
			return err
		}
		if err := work.AddColumn(col); err != nil {
			return err
		}
	}

	s.q, s.r = work.q, work.r
	return nil
}

// Solve returns the least-squares coefficients of y on the active columns, in
// column order.
func (s *Solver) Solve(y []float64) ([]float64, error) {
	if len(y) != s.n {
		return nil, errors.NewDimensionError("Solver.Solve", s.n, len(y), 0)
	}
	k := s.Size()
	if k == 0 {
		return []float64{}, nil
	}
	if err := s.checkConditioning(); err != nil {
		return nil, err
	}

	qty := mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		qty.SetVec(j, floats.Dot(s.q[j], y))
	}

	var beta mat.VecDense
	if err := beta.SolveVec(s.triangle(), qty); err != nil {
		return nil, errors.Wrap(
			errors.NewNumericalInstabilityError("Solver.Solve", []float64{s.diagonalRatio()}, k),
			err.Error())
	}

	coefs := make([]float64, k)
	copy(coefs, beta.RawVector().Data)
	if err := errors.CheckNumericalStability("Solver.Solve", coefs, k); err != nil {
		return nil, err
	}
	return coefs, nil
}

// SolveGram returns (AᵀA)⁻¹ b through two triangular solves with R.
func (s *Solver) SolveGram(b []float64) ([]float64, error) {
	k := s.Size()
	if len(b) != k {
		return nil, errors.NewDimensionError("Solver.SolveGram", k, len(b), 0)
	}
	if k == 0 {
		return []float64{}, nil
	}
	if err := s.checkConditioning(); err != nil {
		return nil, err
	}

	tri := s.triangle()
	var z, x mat.VecDense
	if err := z.SolveVec(tri.T(), mat.NewVecDense(k, append([]float64(nil), b...))); err != nil {
		return nil, errors.Wrap(errors.NewNumericalInstabilityError("Solver.SolveGram", b, k), err.Error())
	}
	if err := x.SolveVec(tri, &z); err != nil {
		return nil, errors.Wrap(errors.NewNumericalInstabilityError("Solver.SolveGram", b, k), err.Error())
	}

	out := make([]float64, k)
	copy(out, x.RawVector().Data)
	return out, nil
}

// Project returns Q·Qᵀ·y, the fitted values of y on the active columns.
func (s *Solver) Project(y []float64) ([]float64, error) {
	if len(y) != s.n {
		return nil, errors.NewDimensionError("Solver.Project", s.n, len(y), 0)
	}
	fitted := make([]float64, s.n)
	for j := range s.q {
		floats.AddScaled(fitted, floats.Dot(s.q[j], y), s.q[j])
	}
	return fitted, nil
}

// Residual returns y - Q·Qᵀ·y.
func (s *Solver) Residual(y []float64) ([]float64, error) {
	fitted, err := s.Project(y)
	if err != nil {
		return nil, err
	}
	res := make([]float64, s.n)
	floats.SubTo(res, y, fitted)
	return res, nil
}

// R returns a copy of the triangular factor.
func (s *Solver) R() *mat.TriDense {
	if s.Size() == 0 {
		return nil
	}
	return s.triangle()
}

// Q returns a copy of the orthonormal factor as an N×k matrix.
func (s *Solver) Q() *mat.Dense {
	if s.Size() == 0 {
		return nil
	}
	q := mat.NewDense(s.n, s.Size(), nil)
	for j, col := range s.q {
		q.SetCol(j, col)
	}
	return q
}

func (s *Solver) triangle() *mat.TriDense {
	k := s.Size()
	tri := mat.NewTriDense(k, mat.Upper, nil)
	for j, col := range s.r {
		for i, v := range col {
			tri.SetTri(i, j, v)
		}
	}
	return tri
}

func (s *Solver) diagonalRatio() float64 {
	lo, hi := math.Inf(1), 0.0
	for j, col := range s.r {
		d := math.Abs(col[j])
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return errors.SafeDivide(lo, hi)
}

func (s *Solver) checkConditioning() error {
	if ratio := s.diagonalRatio(); ratio <= s.singularTol {
		return errors.NewNumericalInstabilityError("Solver.Solve", []float64{ratio}, s.Size())
	}
	return nil
}
