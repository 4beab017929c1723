// Package model holds the pieces shared by fitted artifacts: the fitted-state
// marker, gob persistence and the JSON weight snapshot.
package model

// EstimatorState is the lifecycle state of a fitted artifact.
type EstimatorState int

const (
	// NotFitted means the artifact is still being built.
	NotFitted EstimatorState = iota
	// Fitted means the artifact is complete and read-only.
	Fitted
)

// BaseEstimator is embedded by every artifact that is built once and then
// frozen.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the artifact is complete.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted freezes the artifact.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the artifact to the NotFitted state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}

// State returns the current state.
func (e *BaseEstimator) State() EstimatorState {
	return e.state
}
