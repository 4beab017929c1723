package sparse

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/YuminosukeSato/sparsepce/core/parallel"
	"github.com/YuminosukeSato/sparsepce/design"
	"github.com/YuminosukeSato/sparsepce/lsq"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// PolicyKind selects a selection policy.
type PolicyKind int

const (
	// GreedyCorrelation adds the candidate with the largest normalized
	// correlation to the residual.
	GreedyCorrelation PolicyKind = iota
	// LeastAngle follows the least angle regression path with the lasso
	// modification, so active functions may leave the set.
	LeastAngle
	// CustomScoring adds the candidate with the largest caller-defined score.
	CustomScoring
)

func (k PolicyKind) String() string {
	switch k {
	case GreedyCorrelation:
		return "GreedyCorrelation"
	case LeastAngle:
		return "LeastAngle"
	case CustomScoring:
		return "CustomScoring"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// ScoreFunc scores a candidate column against the current residual. Larger is
// better. Both slices are shared and must not be modified.
type ScoreFunc func(index int, column, residual []float64) float64

// State is the view of a running build offered to a Policy. Policies must
// treat it as read-only.
type State struct {
	Provider design.Provider
	// Candidates are the admissible dictionary indices, ascending.
	Candidates []int
	// Active are the active dictionary indices in solver column order.
	Active    []int
	ActiveSet *roaring.Bitmap
	// Excluded holds candidates dropped for the rest of the build.
	Excluded *roaring.Bitmap
	// Response is y and Centered is y minus its mean.
	Response []float64
	Centered []float64
	// Residual is y minus its projection on the active columns, or the
	// centred response before the first step.
	Residual     []float64
	Coefficients []float64
	// Solver factorizes the active columns in Active order.
	Solver         *lsq.Solver
	ScoreTolerance float64
	// Step is the number of accepted steps.
	Step int
}

// Admissible reports whether idx may enter the active set.
func (st *State) Admissible(idx int) bool {
	return !st.ActiveSet.Contains(uint32(idx)) && !st.Excluded.Contains(uint32(idx))
}

// Inactive returns the admissible candidates, ascending.
func (st *State) Inactive() []int {
	out := make([]int, 0, len(st.Candidates))
	for _, idx := range st.Candidates {
		if st.Admissible(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// Proposal is a policy's request for the next step. Add holds dictionary
// indices to append, Remove active indices to drop.
type Proposal struct {
	Add    []int
	Remove []int
	// Score is the score of the best candidate, for diagnostics.
	Score float64
	// Invalid lists candidates whose column could not be evaluated.
	Invalid []int
}

// IsEmpty reports whether the proposal changes nothing.
func (p Proposal) IsEmpty() bool { return len(p.Add) == 0 && len(p.Remove) == 0 }

// Policy decides which functions enter or leave the active set.
//
// Reset is called once per build before the first proposal. Propose is called
// before every step; an empty proposal ends the build. Observe is called after
// every accepted step. A Policy instance serves one build at a time.
type Policy interface {
	Name() string
	Reset(st *State) error
	Propose(st *State) (Proposal, error)
	Observe(st *State) error
}

func newPolicy(kind PolicyKind, fn ScoreFunc) (Policy, error) {
	switch kind {
	case GreedyCorrelation:
		return &greedyPolicy{name: kind.String(), score: correlationScore}, nil
	case LeastAngle:
		return &larsPolicy{}, nil
	case CustomScoring:
		if fn == nil {
			return nil, errors.NewValidationError("scoreFunc", "CustomScoring needs a score function", nil)
		}
		return &greedyPolicy{name: kind.String(), score: fn}, nil
	default:
		return nil, errors.NewValidationError("policy", "unknown policy", kind)
	}
}

// scoreCandidates evaluates fn on every candidate in parallel. A candidate whose
// column fails to evaluate keeps a zero score and records its error.
func scoreCandidates(st *State, candidates []int, fn func(idx int, col []float64) float64) ([]float64, []error) {
	scores := make([]float64, len(candidates))
	errs := make([]error, len(candidates))
	parallel.Parallelize(len(candidates), func(start, end int) {
		for i := start; i < end; i++ {
			col, err := st.Provider.Column(candidates[i])
			if err != nil {
				errs[i] = err
				continue
			}
			scores[i] = fn(candidates[i], col)
		}
	})
	return scores, errs
}

// pickBest returns the position of the largest finite score above threshold,
// or -1. Earlier positions win ties. Numerically failed candidates are
// returned as invalid; any other failure is returned as an error.
func pickBest(candidates []int, scores []float64, errs []error, threshold float64) (best int, invalid []int, err error) {
	best = -1
	for i, e := range errs {
		if e != nil {
			if !errors.IsNumericalInstability(e) {
				return -1, nil, e
			}
			invalid = append(invalid, candidates[i])
			continue
		}
		s := scores[i]
		if math.IsNaN(s) || math.IsInf(s, 0) || s <= threshold {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best, invalid, nil
}
