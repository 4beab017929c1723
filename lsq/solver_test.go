package lsq

import (
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomColumns(rng *rand.Rand, n, k int) [][]float64 {
	cols := make([][]float64, k)
	for j := range cols {
		cols[j] = make([]float64, n)
		for i := range cols[j] {
			cols[j][i] = rng.NormFloat64()
		}
	}
	return cols
}

func randomVector(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

// directSolve fits y on cols with a fresh Householder QR.
func directSolve(t *testing.T, cols [][]float64, y []float64) []float64 {
	t.Helper()
	n := len(y)
	a := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		a.SetCol(j, c)
	}
	var qr mat.QR
	qr.Factorize(a)
	var beta mat.Dense
	require.NoError(t, qr.SolveTo(&beta, false, mat.NewVecDense(n, y)))
	return mat.Col(nil, 0, &beta)
}

func newSolver(t *testing.T, n int, cols ...[]float64) *Solver {
	t.Helper()
	s, err := NewSolver(n)
	require.NoError(t, err)
	for _, c := range cols {
		require.NoError(t, s.AddColumn(c))
	}
	return s
}

func TestSolverMatchesDirectQR(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const n = 40
	cols := randomColumns(rng, n, 6)
	y := randomVector(rng, n)

	s := newSolver(t, n, cols...)
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, n, s.SampleSize())

	got, err := s.Solve(y)
	require.NoError(t, err)
	want := directSolve(t, cols, y)
	assert.True(t, floats.EqualApprox(want, got, 1e-10), "got %v want %v", got, want)
}

func TestSolverFactorization(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const n = 25
	cols := randomColumns(rng, n, 5)
	s := newSolver(t, n, cols...)
	require.NoError(t, s.RemoveColumn(1))

	q, r := s.Q(), s.R()
	var qr mat.Dense
	qr.Mul(q, r)
	kept := [][]float64{cols[0], cols[2], cols[3], cols[4]}
	for j, c := range kept {
		assert.True(t, floats.EqualApprox(c, mat.Col(nil, j, &qr), 1e-10), "column %d", j)
	}

	var qtq mat.Dense
	qtq.Mul(q.T(), q)
	assert.True(t, mat.EqualApprox(&qtq, eye(4), 1e-12))
}

func eye(k int) *mat.Dense {
	m := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func TestSolverRemoveAnyPosition(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	const n = 30
	cols := randomColumns(rng, n, 5)
	y := randomVector(rng, n)

	for pos := range cols {
		s := newSolver(t, n, cols...)
		require.NoError(t, s.RemoveColumn(pos))

		var rest [][]float64
		rest = append(rest, cols[:pos]...)
		rest = append(rest, cols[pos+1:]...)

		got, err := s.Solve(y)
		require.NoError(t, err)
		assert.True(t, floats.EqualApprox(directSolve(t, rest, y), got, 1e-10), "remove %d", pos)
	}
}

func TestSolverAddRemoveInverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	const n = 20
	cols := randomColumns(rng, n, 4)
	y := randomVector(rng, n)

	s := newSolver(t, n, cols[:3]...)
	before, err := s.Solve(y)
	require.NoError(t, err)

	require.NoError(t, s.AddColumn(cols[3]))
	require.NoError(t, s.RemoveColumn(3))

	after, err := s.Solve(y)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(before, after, 1e-12))
}

func TestSolverDependentColumn(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	const n = 15
	cols := randomColumns(rng, n, 2)
	s := newSolver(t, n, cols...)

	combo := make([]float64, n)
	floats.AddScaledTo(combo, cols[0], 2.5, cols[1])

	err := s.AddColumn(combo)
	require.Error(t, err)
	var dep *DependentColumnError
	require.True(t, errors.As(err, &dep))
	assert.Equal(t, 2, dep.Rank)
	assert.True(t, errors.IsNumericalInstability(err))
	assert.Equal(t, 2, s.Size(), "failed add must leave the solver unchanged")

	err = s.AddColumn(make([]float64, n))
	assert.True(t, errors.IsNumericalInstability(err))
}

func TestSolverInvalidArguments(t *testing.T) {
	_, err := NewSolver(0)
	assert.True(t, errors.IsInvalidArgument(err))
	_, err = NewSolver(3, WithTolerance(0))
	assert.True(t, errors.IsInvalidArgument(err))

	s := newSolver(t, 3, []float64{1, 2, 3})
	assert.True(t, errors.IsInvalidArgument(s.AddColumn([]float64{1, 2})))
	assert.True(t, errors.IsInvalidArgument(s.RemoveColumn(1)))
	assert.True(t, errors.IsInvalidArgument(s.RemoveColumn(-1)))
	_, err = s.Solve([]float64{1})
	assert.True(t, errors.IsInvalidArgument(err))
	_, err = s.SolveGram([]float64{1, 2})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestSolverEmpty(t *testing.T) {
	s := newSolver(t, 4)
	beta, err := s.Solve([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Empty(t, beta)

	res, err := s.Residual([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, res)
	assert.Nil(t, s.R())
}

func TestSolverIllConditioned(t *testing.T) {
	s, err := NewSolver(3, WithTolerance(1e-15), WithSingularTolerance(1e-6))
	require.NoError(t, err)
	require.NoError(t, s.AddColumn([]float64{1, 0, 0}))
	require.NoError(t, s.AddColumn([]float64{1, 1e-8, 0}))

	_, err = s.Solve([]float64{1, 1, 1})
	assert.True(t, errors.IsNumericalInstability(err))
}

func TestSolverProjectionAndResidual(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	const n = 12
	cols := randomColumns(rng, n, 3)
	y := randomVector(rng, n)
	s := newSolver(t, n, cols...)

	beta, err := s.Solve(y)
	require.NoError(t, err)
	fitted, err := s.Project(y)
	require.NoError(t, err)

	want := make([]float64, n)
	for j, c := range cols {
		floats.AddScaled(want, beta[j], c)
	}
	assert.True(t, floats.EqualApprox(want, fitted, 1e-10))

	res, err := s.Residual(y)
	require.NoError(t, err)
	for _, c := range cols {
		assert.InDelta(t, 0, floats.Dot(c, res), 1e-10, "residual must be orthogonal to active columns")
	}
}

func TestSolverSolveGram(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	const n = 18
	cols := randomColumns(rng, n, 4)
	s := newSolver(t, n, cols...)
	b := []float64{1, -2, 0.5, 3}

	x, err := s.SolveGram(b)
	require.NoError(t, err)

	// (AᵀA) x must give back b
	for i := range cols {
		var v float64
		for j := range cols {
			v += floats.Dot(cols[i], cols[j]) * x[j]
		}
		assert.InDelta(t, b[i], v, 1e-9)
	}
}

func TestSolverCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(15, 16))
	cols := randomColumns(rng, 10, 3)
	s := newSolver(t, 10, cols[:2]...)
	c := s.Clone()
	require.NoError(t, c.AddColumn(cols[2]))
	require.NoError(t, c.RemoveColumn(0))

	assert.Equal(t, 2, s.Size())
	y := randomVector(rng, 10)
	got, err := s.Solve(y)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(directSolve(t, cols[:2], y), got, 1e-10))

	s.Reset()
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 2, c.Size())
}

func TestSolverApply(t *testing.T) {
	rng := rand.New(rand.NewPCG(17, 18))
	const n = 30
	cols := randomColumns(rng, n, 6)
	y := randomVector(rng, n)

	// active dictionary indices 0,1,2,3 -> 0,2,4,5
	s := newSolver(t, n, cols[:4]...)
	prev, next := []int{0, 1, 2, 3}, []int{0, 2, 4, 5}
	d, err := NewDelta(prev, next)
	require.NoError(t, err)

	fetch := func(rank int) ([]float64, error) { return cols[next[rank]], nil }
	require.NoError(t, s.Apply(d, fetch))
	assert.Equal(t, 4, s.Size())

	got, err := s.Solve(y)
	require.NoError(t, err)
	want := directSolve(t, [][]float64{cols[0], cols[2], cols[4], cols[5]}, y)
	assert.True(t, floats.EqualApprox(want, got, 1e-10))
}

func TestSolverApplyIsAtomic(t *testing.T) {
	rng := rand.New(rand.NewPCG(19, 20))
	const n = 10
	cols := randomColumns(rng, n, 3)
	y := randomVector(rng, n)
	s := newSolver(t, n, cols...)
	before, err := s.Solve(y)
	require.NoError(t, err)

	d, err := NewDelta([]int{0, 1, 2}, []int{0, 2, 3, 4})
	require.NoError(t, err)
	// the second added column duplicates the first one
	dup := randomVector(rng, n)
	err = s.Apply(d, func(rank int) ([]float64, error) { return dup, nil })
	var dep *DependentColumnError
	require.True(t, errors.As(err, &dep))
	assert.Equal(t, 3, dep.Rank)

	assert.Equal(t, 3, s.Size())
	after, err := s.Solve(y)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	boom := errors.New("boom")
	err = s.Apply(d, func(rank int) ([]float64, error) { return nil, boom })
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 3, s.Size())
}

func TestSolverApplyRejectsReordering(t *testing.T) {
	s := newSolver(t, 3, []float64{1, 0, 0}, []float64{0, 1, 0})

	tests := []struct {
		name string
		d    Delta
	}{
		{"wrong size", Delta{Conserved: []Rank{{New: 0, Old: 0}}}},
		{"swapped", Delta{Conserved: []Rank{{New: 0, Old: 1}, {New: 1, Old: 0}}}},
		{"added in the middle", Delta{Added: []int{0}, Conserved: []Rank{{New: 1, Old: 0}}, Removed: []int{1}}},
		{"removed twice", Delta{Removed: []int{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Apply(tt.d, func(int) ([]float64, error) { return []float64{0, 0, 1}, nil })
			assert.True(t, errors.IsInvalidArgument(err))
			assert.Equal(t, 2, s.Size())
		})
	}
}
