// Package sparsepce builds sparse polynomial chaos style expansions: nested
// sequences of least-squares models over a dictionary of candidate basis
// functions, one active set per step.
//
// # Quick Start
//
//	dict, err := basis.NewTensorized([]basis.Family{basis.Legendre{}, basis.Legendre{}}, 6)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	builder := sparse.NewBuilder(
//	    sparse.WithPolicy(sparse.LeastAngle),
//	    sparse.WithMaximumRelativeConvergence(1e-5),
//	)
//	seq, err := builder.Build(x, y, dict, sparse.AllIndices(dict.Size()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	last, _ := seq.Last()
//	fmt.Println(last.Indices, last.Coefficients, seq.StopReason())
//
// # Packages
//
//   - basis: candidate functions and tensorized polynomial dictionaries
//   - design: lazily evaluated, cached design matrix columns
//   - lsq: incremental thin QR least squares and index set deltas
//   - sparse: the builder and its selection policies
//   - sequence: the resulting basis sequence, persistence, export and plots
//   - selection: leave-one-out choice of a step
//   - linear: direct QR least squares with leverages
//   - metrics: regression error measures
//   - core/model: fitted-state base, gob persistence, JSON weights
//   - core/parallel: chunked goroutine fan-out
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Performance
//
// Candidate scoring fans out over all CPU cores, and design columns are
// evaluated at most once per build. Each step updates the QR factorization in
// O(N·k) per added or removed column instead of refactorizing.
package sparsepce
