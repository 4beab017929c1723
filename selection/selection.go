// Package selection picks a step of a finished basis sequence by
// leave-one-out cross-validation.
//
// Every step is refitted with a direct QR least squares on its active columns.
// The leave-one-out residual of sample i is r_i/(1-h_i), where h_i is the
// diagonal of the hat matrix, so no model is refitted N times.
package selection

import (
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/sparsepce/core/parallel"
	"github.com/YuminosukeSato/sparsepce/design"
	"github.com/YuminosukeSato/sparsepce/linear"
	"github.com/YuminosukeSato/sparsepce/metrics"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/YuminosukeSato/sparsepce/pkg/log"
	"github.com/YuminosukeSato/sparsepce/sequence"
	"gonum.org/v1/gonum/mat"
)

// leverages this close to one make the leave-one-out residual unbounded
const leverageTolerance = 1e-12

// Criterion is a leave-one-out variant.
type Criterion int

const (
	// LOO is the plain leave-one-out mean squared error.
	LOO Criterion = iota
	// CorrectedLOO multiplies the LOO error by N/(N-k)·(1+tr((ΨᵀΨ)⁻¹)),
	// penalizing large active sets on small samples.
	CorrectedLOO
)

func (c Criterion) String() string {
	switch c {
	case LOO:
		return "LOO"
	case CorrectedLOO:
		return "CorrectedLOO"
	default:
		return fmt.Sprintf("Criterion(%d)", int(c))
	}
}

// Result holds one score per step of the sequence.
type Result struct {
	// Best is the step with the smallest finite error, the earliest on ties,
	// or -1 when no step has a finite error.
	Best int
	// Errors are the leave-one-out mean squared errors. Steps that cannot be
	// scored hold +Inf.
	Errors []float64
	// R2 is 1 - Errors/Var(y).
	R2 []float64
}

// Option configures Select.
type Option func(*config)

type config struct {
	logger log.Logger
}

// WithLogger sets the logger for the selection summary.
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// LeaveOneOut scores every step of seq with the plain leave-one-out error.
func LeaveOneOut(provider design.Provider, y mat.Matrix, seq *sequence.BasisSequence, opts ...Option) (*Result, error) {
	return Select(provider, y, seq, LOO, opts...)
}

// CorrectedLeaveOneOut scores every step of seq with the corrected
// leave-one-out error.
func CorrectedLeaveOneOut(provider design.Provider, y mat.Matrix, seq *sequence.BasisSequence, opts ...Option) (*Result, error) {
	return Select(provider, y, seq, CorrectedLOO, opts...)
}

// Select scores every step of seq under criterion. The provider must be the
// one the sequence was built on and y the response of that build.
func Select(provider design.Provider, y mat.Matrix, seq *sequence.BasisSequence, criterion Criterion, opts ...Option) (res *Result, err error) {
	defer errors.Recover(&err, "selection.Select")
	start := time.Now()

	cfg := config{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if criterion != LOO && criterion != CorrectedLOO {
		return nil, errors.NewValidationError("criterion", "unknown criterion", criterion)
	}
	if provider == nil {
		return nil, errors.NewValidationError("provider", "must not be nil", nil)
	}
	if seq == nil || seq.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "selection.Select: empty sequence")
	}
	if seq.DictionarySize() != provider.Size() {
		return nil, errors.NewDimensionError("selection.Select", seq.DictionarySize(), provider.Size(), 1)
	}
	n := provider.SampleSize()
	ry, cy := y.Dims()
	if ry != n {
		return nil, errors.NewDimensionError("selection.Select", n, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError("selection.Select", "y must be a column vector")
	}
	response := mat.NewVecDense(n, mat.Col(nil, 0, y))
	variance, err := metrics.Variance(response)
	if err != nil {
		return nil, err
	}
	if variance == 0 {
		return nil, errors.NewValueError("selection.Select", "response has no variance")
	}

	steps := seq.Len()
	res = &Result{
		Best:   -1,
		Errors: make([]float64, steps),
		R2:     make([]float64, steps),
	}
	errs := make([]error, steps)
	parallel.Parallelize(steps, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			indices, e := seq.Indices(i)
			if e == nil {
				res.Errors[i], e = score(provider, response, indices, criterion)
			}
			errs[i] = e
		}
	})

	for i, e := range errs {
		if e != nil {
			return nil, errors.Wrapf(e, "selection.Select: step %d", i)
		}
		res.R2[i] = 1 - res.Errors[i]/variance
		if math.IsInf(res.Errors[i], 1) {
			continue
		}
		if res.Best < 0 || res.Errors[i] < res.Errors[res.Best] {
			res.Best = i
		}
	}

	cfg.logger.Debug("selection finished",
		log.OperationKey, log.OperationSelect,
		log.CriterionKey, criterion.String(),
		log.StepKey, res.Best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// score returns the criterion for one active set. Sets that cannot be fitted
// score +Inf; only provider failures are returned as errors.
func score(provider design.Provider, y *mat.VecDense, indices []int, criterion Criterion) (float64, error) {
	n := y.Len()
	k := len(indices)
	if k >= n {
		return math.Inf(1), nil
	}
	if k == 0 {
		// the empty model predicts zero everywhere
		return mat.Dot(y, y) / float64(n), nil
	}

	psi, err := provider.Columns(indices)
	if err != nil {
		if errors.IsNumericalInstability(err) {
			return math.Inf(1), nil
		}
		return 0, err
	}
	ls := linear.NewLeastSquares()
	if err := ls.Fit(psi, y); err != nil {
		if errors.IsNumericalInstability(err) {
			return math.Inf(1), nil
		}
		return 0, err
	}
	h, err := ls.Leverages()
	if err != nil {
		return 0, err
	}

	residuals := ls.Residuals()
	var sum float64
	for i, r := range residuals {
		if 1-h[i] < leverageTolerance {
			return math.Inf(1), nil
		}
		e := r / (1 - h[i])
		sum += e * e
	}
	loo := sum / float64(n)
	if criterion == LOO {
		return loo, nil
	}

	trace, err := ls.InverseGramTrace()
	if err != nil {
		return 0, err
	}
	return loo * float64(n) / float64(n-k) * (1 + trace), nil
}
