// Package errors provides the error kinds and warning plumbing shared by every
// sparsepce package.
//
// Two error kinds matter to callers: InvalidArgument (malformed or inconsistent
// input, reported by DimensionError, ValidationError and ValueError) and
// NumericalInstability (rank deficiency or a near-singular factorization,
// reported by NumericalInstabilityError). Both carry a stack trace through
// cockroachdb/errors and can be tested with IsInvalidArgument and
// IsNumericalInstability after any amount of wrapping.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("sparsepce-warning: %v\n", w)
	}
	// set lazily by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the handler used by Warn.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a structured warning sink. It takes precedence
// over the plain handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the configured sink.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning is raised when an iterative procedure stops on its
// iteration cap instead of its convergence criterion.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing the iteration cap or the convergence threshold.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// ExcludedCandidateWarning reports a dictionary entry that was dropped from
// the candidate pool for the rest of a build.
type ExcludedCandidateWarning struct {
	Index  int
	Step   int
	Reason string
}

func (w *ExcludedCandidateWarning) Error() string {
	return fmt.Sprintf("candidate %d excluded at step %d: %s", w.Index, w.Step, w.Reason)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ExcludedCandidateWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("index", w.Index).
		Int("step", w.Step).
		Str("reason", w.Reason).
		Str("type", "ExcludedCandidateWarning")
}

// NewExcludedCandidateWarning creates an ExcludedCandidateWarning.
func NewExcludedCandidateWarning(index, step int, reason string) *ExcludedCandidateWarning {
	return &ExcludedCandidateWarning{Index: index, Step: step, Reason: reason}
}

// ===========================================================================
//
//	InvalidArgument errors
//
// ===========================================================================

// DimensionError reports a shape mismatch between inputs.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("sparsepce: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError reports a parameter that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sparsepce: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError reports an argument whose value is unusable, such as an
// out-of-range position.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("sparsepce: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// IsInvalidArgument reports whether err is, or wraps, an InvalidArgument kind
// error.
func IsInvalidArgument(err error) bool {
	if err == nil {
		return false
	}
	var dimErr *DimensionError
	var valErr *ValidationError
	var valueErr *ValueError
	return errors.As(err, &dimErr) || errors.As(err, &valErr) || errors.As(err, &valueErr) ||
		errors.Is(err, ErrEmptyData)
}

// ===========================================================================
//
//	NumericalInstability errors
//
// ===========================================================================

// NumericalInstabilityError reports rank deficiency, a near-singular
// factorization or non-finite values.
type NumericalInstabilityError struct {
	Operation string                 // e.g. "Solver.AddColumn", "Solver.Solve"
	Values    []float64              // offending values
	Context   map[string]interface{} // extra debugging context
	Iteration int                    // step or column position where it happened
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("sparsepce: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a
// stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
		Context:   make(map[string]interface{}),
	}
	return errors.WithStack(err)
}

// IsNumericalInstability reports whether err is, or wraps, a
// NumericalInstability kind error.
func IsNumericalInstability(err error) bool {
	if err == nil {
		return false
	}
	var numErr *NumericalInstabilityError
	return errors.As(err, &numErr) || errors.Is(err, ErrSingularMatrix)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned for empty samples or index sets.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a triangular factor cannot be inverted.
	ErrSingularMatrix = New("singular matrix")

	// ErrFinalized is returned when appending to a finalized sequence.
	ErrFinalized = New("sequence is finalized")

	// ErrNotFitted is returned when a model is used before Fit.
	ErrNotFitted = New("model is not fitted")
)
