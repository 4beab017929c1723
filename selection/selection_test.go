package selection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/sparsepce/basis"
	"github.com/YuminosukeSato/sparsepce/design"
	"github.com/YuminosukeSato/sparsepce/linear"
	"github.com/YuminosukeSato/sparsepce/lsq"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/YuminosukeSato/sparsepce/pkg/log"
	"github.com/YuminosukeSato/sparsepce/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// nested builds a finalized sequence visiting the given active sets.
func nested(t *testing.T, dictSize int, sets ...[]int) *sequence.BasisSequence {
	t.Helper()
	seq := sequence.New(dictSize)
	var prev []int
	for _, set := range sets {
		delta, err := lsq.NewDelta(prev, set)
		require.NoError(t, err)
		require.NoError(t, seq.Append(sequence.Step{
			Indices:      set,
			Coefficients: make([]float64, len(set)),
			Delta:        delta,
		}))
		prev = set
	}
	seq.Finalize(sequence.StopExhausted)
	return seq
}

func quadratic(t *testing.T, n int) (design.Provider, *mat.Dense) {
	t.Helper()
	rng := rand.New(rand.NewPCG(5, 6))
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v := 2*rng.Float64() - 1
		x.Set(i, 0, v)
		y.Set(i, 0, 1+2*v+3*v*v+0.1*rng.NormFloat64())
	}
	dict, err := basis.NewUnivariateBasis(basis.Monomial{}, 5)
	require.NoError(t, err)
	provider, err := design.NewProxy(x, dict)
	require.NoError(t, err)
	return provider, y
}

func TestLeaveOneOutPicksTrueDegree(t *testing.T) {
	provider, y := quadratic(t, 60)
	seq := nested(t, 6, []int{0}, []int{0, 1}, []int{0, 1, 2}, []int{0, 1, 2, 3}, []int{0, 1, 2, 3, 4}, []int{0, 1, 2, 3, 4, 5})

	loo, err := LeaveOneOut(provider, y, seq)
	require.NoError(t, err)
	require.Len(t, loo.Errors, 6)
	require.Len(t, loo.R2, 6)
	assert.GreaterOrEqual(t, loo.Best, 2)
	assert.Less(t, loo.Errors[2], loo.Errors[1]/10)
	assert.Greater(t, loo.R2[loo.Best], 0.95)

	corrected, err := CorrectedLeaveOneOut(provider, y, seq)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, corrected.Best, 2)
	for i := range loo.Errors {
		assert.Greater(t, corrected.Errors[i], loo.Errors[i], "step %d", i)
	}
}

func TestLeaveOneOutMatchesRefitting(t *testing.T) {
	provider, y := quadratic(t, 25)
	indices := []int{0, 1, 2}
	seq := nested(t, 6, indices)

	res, err := LeaveOneOut(provider, y, seq)
	require.NoError(t, err)

	psi, err := provider.Columns(indices)
	require.NoError(t, err)
	n, k := psi.Dims()
	var sum float64
	for drop := 0; drop < n; drop++ {
		xs := mat.NewDense(n-1, k, nil)
		ys := mat.NewDense(n-1, 1, nil)
		row := 0
		for i := 0; i < n; i++ {
			if i == drop {
				continue
			}
			xs.SetRow(row, psi.RawRowView(i))
			ys.Set(row, 0, y.At(i, 0))
			row++
		}
		ls := linear.NewLeastSquares()
		require.NoError(t, ls.Fit(xs, ys))
		pred, err := ls.Predict(psi.Slice(drop, drop+1, 0, k))
		require.NoError(t, err)
		e := y.At(drop, 0) - pred.At(0, 0)
		sum += e * e
	}
	assert.InDelta(t, sum/float64(n), res.Errors[0], 1e-10)
}

func TestSelectEdgeSteps(t *testing.T) {
	psi := mat.NewDense(3, 4, []float64{
		1, 0.5, 2, 1,
		1, -1, 0, 3,
		1, 2, 1, -1,
	})
	provider, err := design.NewMatrixProxy(psi)
	require.NoError(t, err)
	y := mat.NewDense(3, 1, []float64{1, 2, 4})

	// [0] then the empty set then as many columns as samples
	seq := nested(t, 4, []int{0}, []int{}, []int{0, 1, 2})

	res, err := LeaveOneOut(provider, y, seq)
	require.NoError(t, err)
	assert.InDelta(t, (1+4+16)/3.0, res.Errors[1], 1e-12)
	assert.True(t, math.IsInf(res.Errors[2], 1))
	assert.True(t, math.IsInf(res.R2[2], -1))
	assert.Equal(t, 0, res.Best)
}

func TestSelectTiesGoToEarlierStep(t *testing.T) {
	provider, y := quadratic(t, 30)
	seq := nested(t, 6, []int{0, 2}, []int{0, 2, 5}, []int{0, 2})

	res, err := LeaveOneOut(provider, y, seq)
	require.NoError(t, err)
	assert.Equal(t, res.Errors[0], res.Errors[2])
	assert.NotEqual(t, 2, res.Best)
}

func TestSelectDependentColumnsScoreInfinity(t *testing.T) {
	psi := mat.NewDense(4, 3, []float64{
		1, 2, 3,
		2, 0, 2,
		0, 1, 1,
		1, 1, 2,
	})
	provider, err := design.NewMatrixProxy(psi)
	require.NoError(t, err)
	y := mat.NewDense(4, 1, []float64{1, 0, 2, 5})

	res, err := CorrectedLeaveOneOut(provider, y, nested(t, 3, []int{0}, []int{0, 1, 2}))
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.Errors[0], 0))
	assert.True(t, math.IsInf(res.Errors[1], 1))
	assert.Equal(t, 0, res.Best)
}

func TestSelectInvalidArguments(t *testing.T) {
	provider, y := quadratic(t, 20)
	seq := nested(t, 6, []int{0})

	tests := []struct {
		name string
		run  func() error
	}{
		{"nil sequence", func() error { _, err := LeaveOneOut(provider, y, nil); return err }},
		{"empty sequence", func() error { _, err := LeaveOneOut(provider, y, sequence.New(6)); return err }},
		{"nil provider", func() error { _, err := LeaveOneOut(nil, y, seq); return err }},
		{"dictionary mismatch", func() error { _, err := LeaveOneOut(provider, y, nested(t, 7, []int{0})); return err }},
		{"row mismatch", func() error { _, err := LeaveOneOut(provider, mat.NewDense(3, 1, nil), seq); return err }},
		{"y not a column", func() error { _, err := LeaveOneOut(provider, mat.NewDense(20, 2, nil), seq); return err }},
		{"constant response", func() error { _, err := LeaveOneOut(provider, mat.NewDense(20, 1, nil), seq); return err }},
		{"unknown criterion", func() error { _, err := Select(provider, y, seq, Criterion(9)); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
}

func TestSelectLogsSummary(t *testing.T) {
	provider, y := quadratic(t, 20)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	res, err := Select(provider, y, nested(t, 6, []int{0}, []int{0, 1}), CorrectedLOO, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("selection finished"))
	assert.True(t, logger.ContainsField(log.CriterionKey, "CorrectedLOO"))
	assert.Equal(t, "LOO", LOO.String())
	assert.NotNil(t, res)
}
