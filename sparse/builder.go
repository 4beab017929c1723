// Package sparse builds sequences of sparse least-squares models over a
// dictionary of candidate basis functions.
//
// A build starts from an empty active set. At every step a selection policy
// proposes functions to add or remove, the incremental solver in package lsq
// updates its factorization by the resulting delta, and exact least-squares
// coefficients are recorded in a sequence.BasisSequence. The build stops on
// convergence of the coefficients, when no candidate is left or relevant, or on
// a numerical failure, in which case the sequence built so far is returned.
//
// Example:
//
//	dict, _ := basis.NewTensorized([]basis.Family{basis.Legendre{}, basis.Legendre{}}, 4)
//	b := sparse.NewBuilder(
//	    sparse.WithPolicy(sparse.LeastAngle),
//	    sparse.WithMaximumRelativeConvergence(1e-3),
//	)
//	seq, err := b.Build(x, y, dict, sparse.AllIndices(len(dict)))
package sparse

import (
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/YuminosukeSato/sparsepce/basis"
	"github.com/YuminosukeSato/sparsepce/design"
	"github.com/YuminosukeSato/sparsepce/lsq"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"github.com/YuminosukeSato/sparsepce/pkg/log"
	"github.com/YuminosukeSato/sparsepce/sequence"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultMaximumRelativeConvergence is the default convergence threshold.
	DefaultMaximumRelativeConvergence = 1e-4
	// DefaultScoreTolerance is the default relative relevance tolerance.
	DefaultScoreTolerance = 1e-10
)

// Builder holds the configuration of basis-sequence builds. It keeps no state
// between builds and may be reused, including concurrently.
type Builder struct {
	maxRelConv    float64
	maxActive     int
	maxIterations int
	verbose       bool
	logger        log.Logger
	policy        PolicyKind
	scoreFunc     ScoreFunc
	scoreTol      float64
	solverTol     float64
}

// NewBuilder creates a Builder with the greedy correlation policy and the
// default thresholds.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxRelConv: DefaultMaximumRelativeConvergence,
		policy:     GreedyCorrelation,
		scoreTol:   DefaultScoreTolerance,
		solverTol:  lsq.DefaultTolerance,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaximumRelativeConvergence returns the convergence threshold.
func (b *Builder) MaximumRelativeConvergence() float64 { return b.maxRelConv }

// Policy returns the configured policy kind.
func (b *Builder) Policy() PolicyKind { return b.policy }

func (b *Builder) validate() error {
	if !(b.maxRelConv > 0) || math.IsInf(b.maxRelConv, 0) {
		return errors.NewValidationError("maximumRelativeConvergence", "must be positive and finite", b.maxRelConv)
	}
	if b.maxActive < 0 {
		return errors.NewValidationError("maxActive", "must not be negative", b.maxActive)
	}
	if b.maxIterations < 0 {
		return errors.NewValidationError("maxIterations", "must not be negative", b.maxIterations)
	}
	if b.scoreTol < 0 || math.IsNaN(b.scoreTol) {
		return errors.NewValidationError("scoreTolerance", "must not be negative", b.scoreTol)
	}
	if !(b.solverTol > 0 && b.solverTol < 1) {
		return errors.NewValidationError("solverTolerance", "must lie in (0, 1)", b.solverTol)
	}
	return nil
}

func (b *Builder) baseLogger() log.Logger {
	if b.logger != nil {
		return b.logger
	}
	level := log.LevelWarn
	if b.verbose {
		level = log.LevelDebug
	}
	return log.NewZerologLogger(os.Stderr, level)
}

// AllIndices returns 0..p-1, the index set that lets a build consider the
// whole dictionary.
func AllIndices(p int) []int {
	out := make([]int, p)
	for i := range out {
		out[i] = i
	}
	return out
}

// Build evaluates dict on the N×d sample x lazily and builds the sequence of
// sparse models of the N×1 response y, choosing among the dictionary entries
// listed in indices.
func (b *Builder) Build(x, y mat.Matrix, dict basis.Basis, indices []int) (*sequence.BasisSequence, error) {
	proxy, response, err := prepare(x, y, dict, 1)
	if err != nil {
		return nil, err
	}
	return b.BuildFromProvider(response[0], indices, proxy)
}

// BuildMarginals builds one sequence per column of the N×m response y. The
// dictionary is evaluated once and shared by every marginal.
func (b *Builder) BuildMarginals(x, y mat.Matrix, dict basis.Basis, indices []int) ([]*sequence.BasisSequence, error) {
	proxy, responses, err := prepare(x, y, dict, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*sequence.BasisSequence, len(responses))
	for j, yj := range responses {
		seq, err := b.build(yj, indices, proxy, b.baseLogger().With(log.MarginalKey, j))
		if err != nil {
			return nil, errors.Wrapf(err, "marginal %d", j)
		}
		out[j] = seq
	}
	return out, nil
}

// prepare validates the sample and splits y into columns. outputs is the
// required number of columns of y, or 0 for any.
func prepare(x, y mat.Matrix, dict basis.Basis, outputs int) (*design.Proxy, []*mat.VecDense, error) {
	if x == nil || y == nil {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "sparse.Build: nil sample")
	}
	n, _ := x.Dims()
	ry, cy := y.Dims()
	if ry != n {
		return nil, nil, errors.NewDimensionError("sparse.Build", n, ry, 0)
	}
	if outputs > 0 && cy != outputs {
		return nil, nil, errors.NewValueError("sparse.Build",
			fmt.Sprintf("y must have %d column(s), got %d; use BuildMarginals", outputs, cy))
	}
	if cy == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "sparse.Build: empty response")
	}
	proxy, err := design.NewProxy(x, dict)
	if err != nil {
		return nil, nil, err
	}
	responses := make([]*mat.VecDense, cy)
	for j := range responses {
		responses[j] = mat.NewVecDense(n, mat.Col(nil, j, y))
	}
	return proxy, responses, nil
}

// BuildFromProvider builds the sequence of y on the columns served by
// provider, choosing among the entries listed in indices.
func (b *Builder) BuildFromProvider(y mat.Vector, indices []int, provider design.Provider) (*sequence.BasisSequence, error) {
	return b.build(y, indices, provider, b.baseLogger())
}

func (b *Builder) build(y mat.Vector, indices []int, provider design.Provider, logger log.Logger) (seq *sequence.BasisSequence, err error) {
	defer errors.Recover(&err, "sparse.Builder.Build")

	if err := b.validate(); err != nil {
		return nil, err
	}
	if provider == nil || y == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "sparse.Build: nil input")
	}
	n := provider.SampleSize()
	if y.Len() != n {
		return nil, errors.NewDimensionError("sparse.Build", n, y.Len(), 0)
	}
	response := make([]float64, n)
	for i := range response {
		response[i] = y.AtVec(i)
	}
	if err := errors.CheckNumericalStability("sparse.Build", response, 0); err != nil {
		return nil, errors.NewValidationError("y", "must be finite", err.Error())
	}
	candidates, err := checkIndices(indices, provider.Size())
	if err != nil {
		return nil, err
	}

	policy, err := newPolicy(b.policy, b.scoreFunc)
	if err != nil {
		return nil, err
	}
	solver, err := lsq.NewSolver(n, lsq.WithTolerance(b.solverTol))
	if err != nil {
		return nil, err
	}

	maxIter := b.maxIterations
	if maxIter == 0 {
		maxIter = 4 * len(candidates)
	}

	centered := append([]float64(nil), response...)
	floats.AddConst(-stat.Mean(response, nil), centered)

	r := &run{
		cfg:      b,
		provider: provider,
		policy:   policy,
		solver:   solver,
		seq:      sequence.New(provider.Size()),
		maxIter:  maxIter,
		logger: logger.With(
			log.ComponentKey, "sparse",
			log.OperationKey, log.OperationBuild,
			log.PolicyKey, policy.Name(),
		),
		state: &State{
			Provider:       provider,
			Candidates:     candidates,
			ActiveSet:      roaring.New(),
			Excluded:       roaring.New(),
			Response:       response,
			Centered:       centered,
			Residual:       append([]float64(nil), centered...),
			Solver:         solver,
			ScoreTolerance: b.scoreTol,
		},
	}
	return r.execute()
}

// checkIndices validates indices against a dictionary of size p and returns
// them sorted.
func checkIndices(indices []int, p int) ([]int, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "sparse.Build: no candidate indices")
	}
	seen := roaring.New()
	for _, idx := range indices {
		if idx < 0 || idx >= p {
			return nil, errors.NewValueError("sparse.Build",
				fmt.Sprintf("candidate index %d out of range [0, %d)", idx, p))
		}
		if !seen.CheckedAdd(uint32(idx)) {
			return nil, errors.NewValueError("sparse.Build", fmt.Sprintf("candidate index %d appears twice", idx))
		}
	}
	out := make([]int, 0, len(indices))
	for _, v := range seen.ToArray() {
		out = append(out, int(v))
	}
	return out, nil
}

// run is the state of one build.
type run struct {
	cfg      *Builder
	provider design.Provider
	policy   Policy
	solver   *lsq.Solver
	seq      *sequence.BasisSequence
	state    *State
	maxIter  int
	logger   log.Logger
}

func (r *run) execute() (*sequence.BasisSequence, error) {
	start := time.Now()
	st := r.state

	if r.cfg.verbose {
		r.logger.Info("build started",
			log.SamplesKey, r.provider.SampleSize(),
			log.DictionarySizeKey, r.provider.Size(),
			log.CandidatesKey, len(st.Candidates),
		)
	}
	if err := r.policy.Reset(st); err != nil {
		return nil, err
	}

	prevL1 := -1.0
	for iter := 0; ; iter++ {
		if iter >= r.maxIter {
			w := errors.NewConvergenceWarning(r.policy.Name(), iter, "iteration cap reached before convergence")
			r.logger.Warn(w.Error(), "warning", w)
			return r.finish(sequence.StopMaxIterations, start)
		}

		proposal, err := r.policy.Propose(st)
		if err != nil {
			return nil, err
		}
		for _, idx := range proposal.Invalid {
			r.exclude(idx, "column evaluation failed", log.ErrorNumericalInstability)
		}
		if proposal.IsEmpty() {
			return r.finish(sequence.StopNoCandidate, start)
		}

		next, err := r.nextActive(proposal)
		if err != nil {
			return nil, err
		}
		delta, err := lsq.NewDelta(st.Active, next)
		if err != nil {
			return nil, err
		}

		failed := -1
		err = r.solver.Apply(delta, func(rank int) ([]float64, error) {
			col, err := r.provider.Column(next[rank])
			if err != nil {
				failed = next[rank]
			}
			return col, err
		})
		if err != nil {
			var dep *lsq.DependentColumnError
			switch {
			case errors.As(err, &dep):
				r.exclude(next[dep.Rank], "linearly dependent on the active columns", log.ErrorDependentColumn)
				continue
			case failed >= 0 && errors.IsNumericalInstability(err):
				r.exclude(failed, "column evaluation failed", log.ErrorNumericalInstability)
				continue
			default:
				return nil, err
			}
		}

		coefs, err := r.solver.Solve(st.Response)
		if err != nil {
			if errors.IsNumericalInstability(err) {
				r.logger.Warn("step discarded: least-squares solve failed",
					log.StepKey, r.seq.Len(),
					log.ActiveSizeKey, len(next),
					log.ErrorTypeKey, log.ErrorNumericalInstability,
					log.ErrAttrKey, err,
				)
				return r.finish(sequence.StopNumerical, start)
			}
			return nil, err
		}
		residual, err := r.solver.Residual(st.Response)
		if err != nil {
			return nil, err
		}

		l1 := floats.Norm(coefs, 1)
		step := sequence.Step{
			Indices:              next,
			Coefficients:         coefs,
			Delta:                delta,
			ResidualSumOfSquares: floats.Dot(residual, residual),
			RelativeConvergence:  sequence.RelativeConvergence(prevL1, l1),
		}
		prevL1 = l1
		if err := r.seq.Append(step); err != nil {
			return nil, err
		}
		r.commit(step, residual)
		r.logStep(step, proposal)

		if err := r.policy.Observe(st); err != nil {
			if errors.IsNumericalInstability(err) {
				r.logger.Warn("selection path stopped",
					log.StepKey, st.Step-1,
					log.ErrorTypeKey, log.ErrorNumericalInstability,
					log.ErrAttrKey, err,
				)
				return r.finish(sequence.StopNumerical, start)
			}
			return nil, err
		}

		switch {
		case step.RelativeConvergence < r.cfg.maxRelConv:
			return r.finish(sequence.StopConverged, start)
		case len(st.Active) >= len(st.Candidates)-int(st.Excluded.GetCardinality()):
			return r.finish(sequence.StopExhausted, start)
		case r.cfg.maxActive > 0 && len(st.Active) >= r.cfg.maxActive:
			return r.finish(sequence.StopMaxActive, start)
		}
	}
}

// nextActive drops the proposed removals, keeping the order of the remaining
// functions, and appends the proposed additions.
func (r *run) nextActive(p Proposal) ([]int, error) {
	st := r.state
	next := make([]int, 0, len(st.Active)+len(p.Add))
	for _, idx := range st.Active {
		if !slices.Contains(p.Remove, idx) {
			next = append(next, idx)
		}
	}
	if len(next) != len(st.Active)-len(p.Remove) {
		return nil, errors.NewValueError(r.policy.Name(), fmt.Sprintf("cannot remove inactive functions %v", p.Remove))
	}
	for _, idx := range p.Add {
		if !st.Admissible(idx) || !slices.Contains(st.Candidates, idx) {
			return nil, errors.NewValueError(r.policy.Name(), fmt.Sprintf("cannot add function %d", idx))
		}
		next = append(next, idx)
	}
	return next, nil
}

func (r *run) commit(step sequence.Step, residual []float64) {
	st := r.state
	st.Active = step.Indices
	st.ActiveSet.Clear()
	for _, idx := range step.Indices {
		st.ActiveSet.Add(uint32(idx))
	}
	st.Coefficients = step.Coefficients
	st.Residual = residual
	st.Step++
}

func (r *run) exclude(idx int, reason, code string) {
	r.state.Excluded.Add(uint32(idx))
	w := errors.NewExcludedCandidateWarning(idx, r.seq.Len(), reason)
	r.logger.Warn(w.Error(), "warning", w, log.ErrorTypeKey, code)
}

func (r *run) logStep(step sequence.Step, p Proposal) {
	if !r.cfg.verbose {
		return
	}
	added := make([]int, len(step.Delta.Added))
	for i, rank := range step.Delta.Added {
		added[i] = step.Indices[rank]
	}
	r.logger.Info("step accepted",
		log.StepKey, r.seq.Len()-1,
		log.ActiveSizeKey, len(step.Indices),
		log.AddedKey, added,
		log.RemovedKey, p.Remove,
		log.RSSKey, step.ResidualSumOfSquares,
		log.ConvergenceKey, step.RelativeConvergence,
	)
	if r.logger.Enabled(context.Background(), log.LevelDebug) {
		r.logger.Debug("step coefficients",
			log.StepKey, r.seq.Len()-1,
			log.ScoreKey, p.Score,
			"indices", step.Indices,
			"coefficients", step.Coefficients,
		)
	}
}

func (r *run) finish(reason sequence.StopReason, start time.Time) (*sequence.BasisSequence, error) {
	r.seq.Finalize(reason)
	if r.cfg.verbose {
		r.logger.Info("build finished",
			log.StopReasonKey, reason.String(),
			log.StepKey, r.seq.Len(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return r.seq, nil
}
