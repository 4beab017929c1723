// Package sequence holds the ordered result of a basis-sequence build: one
// sparse least-squares model per step, with the index-set delta between
// consecutive steps.
//
// A BasisSequence is append-only while it is being built and read-only once
// finalized.
package sequence

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/sparsepce/core/model"
	"github.com/YuminosukeSato/sparsepce/lsq"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// StopReason records why a build ended.
type StopReason int

const (
	// StopNone marks a sequence that has not been finalized.
	StopNone StopReason = iota
	// StopConverged means the relative L1 change of the coefficients fell below
	// the configured threshold.
	StopConverged
	// StopExhausted means every admissible candidate is active.
	StopExhausted
	// StopMaxActive means the active set reached the configured maximum size.
	StopMaxActive
	// StopNoCandidate means no candidate had a relevant score.
	StopNoCandidate
	// StopMaxIterations means the iteration cap was hit.
	StopMaxIterations
	// StopNumerical means the last step was discarded on a numerical failure.
	StopNumerical
)

var stopReasonNames = map[StopReason]string{
	StopNone:          "none",
	StopConverged:     "converged",
	StopExhausted:     "exhausted",
	StopMaxActive:     "max_active",
	StopNoCandidate:   "no_candidate",
	StopMaxIterations: "max_iterations",
	StopNumerical:     "numerical",
}

func (r StopReason) String() string {
	if name, ok := stopReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// Step is one model of the sequence.
type Step struct {
	// Indices are the active dictionary indices, in solver column order.
	Indices []int
	// Coefficients holds one least-squares coefficient per entry of Indices.
	Coefficients []float64
	// Delta relates Indices to the previous step's indices.
	Delta lsq.Delta
	// ResidualSumOfSquares is ‖y - Ψβ‖² on the build sample.
	ResidualSumOfSquares float64
	// RelativeConvergence is |1 - ‖β(t-1)‖₁ / ‖β(t)‖₁|, 1 for the first step.
	RelativeConvergence float64
}

func (s Step) clone() Step {
	c := s
	c.Indices = append([]int(nil), s.Indices...)
	c.Coefficients = append([]float64(nil), s.Coefficients...)
	c.Delta = lsq.Delta{
		Added:     append([]int(nil), s.Delta.Added...),
		Conserved: append([]lsq.Rank(nil), s.Delta.Conserved...),
		Removed:   append([]int(nil), s.Delta.Removed...),
	}
	return c
}

// Size returns the number of active functions.
func (s Step) Size() int { return len(s.Indices) }

// BasisSequence is the ordered list of steps produced by one build.
type BasisSequence struct {
	model.BaseEstimator

	dictSize int
	steps    []Step
	reason   StopReason
}

// New creates an empty sequence over a dictionary of dictSize functions.
func New(dictSize int) *BasisSequence {
	return &BasisSequence{dictSize: dictSize}
}

// DictionarySize returns P.
func (s *BasisSequence) DictionarySize() int { return s.dictSize }

// Append adds step at the end of the sequence. The step is copied.
func (s *BasisSequence) Append(step Step) error {
	if s.IsFinalized() {
		return errors.Wrap(errors.ErrFinalized, "sequence.Append")
	}
	if err := s.validate(step); err != nil {
		return err
	}
	s.steps = append(s.steps, step.clone())
	return nil
}

func (s *BasisSequence) validate(step Step) error {
	if len(step.Indices) != len(step.Coefficients) {
		return errors.NewDimensionError("sequence.Append", len(step.Indices), len(step.Coefficients), 0)
	}
	seen := make(map[int]struct{}, len(step.Indices))
	for _, idx := range step.Indices {
		if idx < 0 || idx >= s.dictSize {
			return errors.NewValueError("sequence.Append",
				fmt.Sprintf("index %d out of range [0, %d)", idx, s.dictSize))
		}
		if _, dup := seen[idx]; dup {
			return errors.NewValueError("sequence.Append", fmt.Sprintf("index %d appears twice", idx))
		}
		seen[idx] = struct{}{}
	}

	prev := 0
	if n := len(s.steps); n > 0 {
		prev = s.steps[n-1].Size()
	}
	if got := step.Delta.SizeChange(); got != step.Size()-prev {
		return errors.NewValueError("sequence.Append",
			fmt.Sprintf("delta changes the size by %d, steps differ by %d", got, step.Size()-prev))
	}
	if len(step.Delta.Added)+len(step.Delta.Conserved) != step.Size() {
		return errors.NewValueError("sequence.Append", "delta does not cover the new index set")
	}
	if len(step.Delta.Removed)+len(step.Delta.Conserved) != prev {
		return errors.NewValueError("sequence.Append", "delta does not cover the previous index set")
	}
	return nil
}

// Finalize freezes the sequence with the given stop reason. Calling it twice
// keeps the first reason.
func (s *BasisSequence) Finalize(reason StopReason) {
	if s.IsFinalized() {
		return
	}
	s.reason = reason
	s.SetFitted()
}

// IsFinalized reports whether the sequence is frozen.
func (s *BasisSequence) IsFinalized() bool { return s.IsFitted() }

// StopReason returns why the build ended, StopNone while building.
func (s *BasisSequence) StopReason() StopReason { return s.reason }

// Len returns the number of steps.
func (s *BasisSequence) Len() int { return len(s.steps) }

// Step returns a copy of step i.
func (s *BasisSequence) Step(i int) (Step, error) {
	if err := s.checkStep(i); err != nil {
		return Step{}, err
	}
	return s.steps[i].clone(), nil
}

// Last returns a copy of the final step.
func (s *BasisSequence) Last() (Step, error) {
	if len(s.steps) == 0 {
		return Step{}, errors.Wrap(errors.ErrEmptyData, "sequence.Last")
	}
	return s.steps[len(s.steps)-1].clone(), nil
}

// Indices returns the active indices of step i.
func (s *BasisSequence) Indices(i int) ([]int, error) {
	if err := s.checkStep(i); err != nil {
		return nil, err
	}
	return append([]int(nil), s.steps[i].Indices...), nil
}

// Coefficients returns the coefficients of step i.
func (s *BasisSequence) Coefficients(i int) ([]float64, error) {
	if err := s.checkStep(i); err != nil {
		return nil, err
	}
	return append([]float64(nil), s.steps[i].Coefficients...), nil
}

// Dense returns the coefficients of step i scattered into a vector of length P.
func (s *BasisSequence) Dense(i int) ([]float64, error) {
	if err := s.checkStep(i); err != nil {
		return nil, err
	}
	out := make([]float64, s.dictSize)
	for j, idx := range s.steps[i].Indices {
		out[idx] = s.steps[i].Coefficients[j]
	}
	return out, nil
}

// Predict evaluates step i on the rows of a design whose columns are the
// dictionary functions: column reads column idx of the design.
func (s *BasisSequence) Predict(i int, n int, column func(idx int) ([]float64, error)) ([]float64, error) {
	if err := s.checkStep(i); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	step := s.steps[i]
	for j, idx := range step.Indices {
		col, err := column(idx)
		if err != nil {
			return nil, err
		}
		if len(col) != n {
			return nil, errors.NewDimensionError("sequence.Predict", n, len(col), 0)
		}
		for r, v := range col {
			out[r] += step.Coefficients[j] * v
		}
	}
	return out, nil
}

// Sizes returns the active-set size of every step.
func (s *BasisSequence) Sizes() []int {
	out := make([]int, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.Size()
	}
	return out
}

func (s *BasisSequence) checkStep(i int) error {
	if i < 0 || i >= len(s.steps) {
		return errors.NewValueError("sequence.Step", fmt.Sprintf("step %d out of range [0, %d)", i, len(s.steps)))
	}
	return nil
}

// RelativeConvergence returns |1 - prevL1/nextL1|, the convergence measure of a
// step whose coefficient L1 norm moved from prevL1 to nextL1. It is 1 when
// there is no previous step (prevL1 < 0).
func RelativeConvergence(prevL1, nextL1 float64) float64 {
	if prevL1 < 0 {
		return 1
	}
	return math.Abs(1 - errors.SafeDivide(prevL1, nextL1))
}
