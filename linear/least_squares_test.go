package linear

import (
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomDesign(rows, cols int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}
	return X
}

func TestLeastSquaresExactFit(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, -1,
		-1, 3,
	})
	want := []float64{2, -3}
	y := mat.NewDense(5, 1, nil)
	y.Mul(X, mat.NewDense(2, 1, want))

	ls := NewLeastSquares()
	require.NoError(t, ls.Fit(X, y))
	assert.True(t, ls.IsFitted())
	assert.InDeltaSlice(t, want, ls.Coefficients(), 1e-12)
	assert.InDelta(t, 0, ls.ResidualSumOfSquares(), 1e-20)

	score, err := ls.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLeastSquaresMatchesNormalEquations(t *testing.T) {
	X := randomDesign(40, 4, 7)
	rng := rand.New(rand.NewPCG(3, 4))
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		y.Set(i, 0, rng.NormFloat64())
	}

	ls := NewLeastSquares()
	require.NoError(t, ls.Fit(X, y))

	var gram, gramInv mat.Dense
	gram.Mul(X.T(), X)
	require.NoError(t, gramInv.Inverse(&gram))

	var xty, beta mat.Dense
	xty.Mul(X.T(), y)
	beta.Mul(&gramInv, &xty)
	assert.InDeltaSlice(t, mat.Col(nil, 0, &beta), ls.Coefficients(), 1e-10)

	trace, err := ls.InverseGramTrace()
	require.NoError(t, err)
	assert.InDelta(t, mat.Trace(&gramInv), trace, 1e-10)

	var hat, tmp mat.Dense
	tmp.Mul(X, &gramInv)
	hat.Mul(&tmp, X.T())
	h, err := ls.Leverages()
	require.NoError(t, err)
	require.Len(t, h, 40)
	for i := range h {
		assert.InDelta(t, hat.At(i, i), h[i], 1e-10, "leverage %d", i)
		assert.True(t, h[i] >= 0 && h[i] <= 1+1e-12)
	}
	assert.InDelta(t, 4.0, floats.Sum(h), 1e-10, "trace of the hat matrix is the rank")

	// residuals are orthogonal to every column
	res := ls.Residuals()
	for j := 0; j < 4; j++ {
		assert.InDelta(t, 0, floats.Dot(mat.Col(nil, j, X), res), 1e-9)
	}
}

func TestLeastSquaresLeveragesParallel(t *testing.T) {
	X := randomDesign(300, 3, 11)
	y := mat.NewDense(300, 1, mat.Col(nil, 0, X))

	seq := NewLeastSquares()
	par := NewLeastSquares(WithParallelThreshold(1))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	hs, err := seq.Leverages()
	require.NoError(t, err)
	hp, err := par.Leverages()
	require.NoError(t, err)
	assert.Equal(t, hs, hp)
}

func TestLeastSquaresRankDeficient(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 2, 3,
		2, 0, 2,
		0, 1, 1,
		1, 1, 2,
	})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	err := NewLeastSquares().Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.IsNumericalInstability(err))
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
}

func TestLeastSquaresInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		X    mat.Matrix
		y    mat.Matrix
		opts []Option
	}{
		{"row mismatch", mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}), nil},
		{"y not a column", mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 2, nil), nil},
		{"more columns than rows", mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}), mat.NewDense(2, 1, []float64{1, 2}), nil},
		{"tolerance out of range", mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}), []Option{WithTol(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := NewLeastSquares(tt.opts...)
			err := ls.Fit(tt.X, tt.y)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
			assert.False(t, ls.IsFitted())
		})
	}
}

func TestLeastSquaresNotFitted(t *testing.T) {
	ls := NewLeastSquares()
	assert.Nil(t, ls.Coefficients())

	_, err := ls.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
	_, err = ls.Leverages()
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
	_, err = ls.InverseGramTrace()
	assert.True(t, errors.Is(err, errors.ErrNotFitted))
}

func TestLeastSquaresPredictDimensions(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})
	ls := NewLeastSquares()
	require.NoError(t, ls.Fit(X, y))

	pred, err := ls.Predict(mat.NewDense(2, 1, []float64{10, -1}))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{20, -2}, mat.Col(nil, 0, pred), 1e-12)

	_, err = ls.Predict(mat.NewDense(2, 2, nil))
	assert.True(t, errors.IsInvalidArgument(err))
}
