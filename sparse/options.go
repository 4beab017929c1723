package sparse

import (
	"github.com/YuminosukeSato/sparsepce/pkg/log"
)

// Option configures a Builder.
type Option func(*Builder)

// WithMaximumRelativeConvergence sets the threshold on the relative L1 change
// of the coefficients below which a build stops. It must be positive.
func WithMaximumRelativeConvergence(threshold float64) Option {
	return func(b *Builder) {
		b.maxRelConv = threshold
	}
}

// WithMaxActive caps the size of the active set. Zero means no cap.
func WithMaxActive(n int) Option {
	return func(b *Builder) {
		b.maxActive = n
	}
}

// WithMaxIterations caps the number of proposals per build. Zero selects
// 4 times the number of candidate indices.
func WithMaxIterations(n int) Option {
	return func(b *Builder) {
		b.maxIterations = n
	}
}

// WithVerbose turns per-step diagnostics on or off.
func WithVerbose(verbose bool) Option {
	return func(b *Builder) {
		b.verbose = verbose
	}
}

// WithLogger sets the logger. The default writes warnings to stderr through
// zerolog, and debug records as well when verbose.
func WithLogger(logger log.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithPolicy selects the selection policy.
func WithPolicy(kind PolicyKind) Option {
	return func(b *Builder) {
		b.policy = kind
	}
}

// WithScoreFunc sets the scoring function of the CustomScoring policy and
// selects that policy.
func WithScoreFunc(fn ScoreFunc) Option {
	return func(b *Builder) {
		b.scoreFunc = fn
		b.policy = CustomScoring
	}
}

// WithScoreTolerance sets the relative tolerance below which a candidate score
// counts as irrelevant: a candidate is relevant when its score exceeds
// tol·‖r‖.
func WithScoreTolerance(tol float64) Option {
	return func(b *Builder) {
		b.scoreTol = tol
	}
}

// WithSolverTolerance sets the linear-dependence tolerance of the incremental
// least-squares solver.
func WithSolverTolerance(tol float64) Option {
	return func(b *Builder) {
		b.solverTol = tol
	}
}
