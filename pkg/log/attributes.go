package log

// Attribute keys follow a hierarchical naming convention ("basis.step",
// "data.samples") so that records from every component can be filtered the
// same way.

// Operation context.
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "sparse", "lsq", "design", "selection"
	ComponentKey = "ml.component"

	// OperationKey names the operation being performed.
	// Standard values: OperationBuild, OperationSolve, OperationSelect
	OperationKey = "ml.operation"

	// PolicyKey names the selection policy driving a build.
	// Examples: "GreedyCorrelation", "LeastAngle", "CustomScoring"
	PolicyKey = "basis.policy"
)

// Data shape.
const (
	// SamplesKey is the number of sample points (rows of the design).
	SamplesKey = "data.samples"

	// DictionarySizeKey is the number of candidate basis functions.
	DictionarySizeKey = "data.dictionary_size"

	// CandidatesKey is the number of dictionary entries a build may select.
	CandidatesKey = "data.candidates"

	// MarginalKey is the output marginal a sequence is built for.
	MarginalKey = "data.marginal"
)

// Basis sequence progress.
const (
	// StepKey is the index of an accepted step in the sequence.
	StepKey = "basis.step"

	// ActiveSizeKey is the size of the active set after a step.
	ActiveSizeKey = "basis.active"

	// AddedKey lists the dictionary indices entering the active set.
	AddedKey = "basis.added"

	// RemovedKey lists the dictionary indices leaving the active set.
	RemovedKey = "basis.removed"

	// ScoreKey is the relevance score of the chosen candidate.
	ScoreKey = "basis.score"

	// RSSKey is the residual sum of squares after a step.
	RSSKey = "basis.rss"

	// ConvergenceKey is the relative L1 change of the coefficients.
	ConvergenceKey = "basis.convergence"

	// StopReasonKey is the reason a build ended.
	StopReasonKey = "basis.stop_reason"

	// CriterionKey is the model selection criterion.
	CriterionKey = "selection.criterion"

	// DurationMsKey is the elapsed time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the error.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationBuild  = "build"
	OperationSolve  = "solve"
	OperationSelect = "select"

	ErrorInvalidArgument      = "INVALID_ARGUMENT"
	ErrorNumericalInstability = "NUMERICAL_INSTABILITY"
	ErrorDependentColumn      = "DEPENDENT_COLUMN"
)
