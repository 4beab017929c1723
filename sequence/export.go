package sequence

import (
	"github.com/YuminosukeSato/sparsepce/core/model"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// WeightsVersion is the version written into exported weights.
const WeightsVersion = "1.0"

// ExportWeights returns step i as portable weights. names, when given, labels
// every dictionary function and must have length P.
func (s *BasisSequence) ExportWeights(i int, names []string) (*model.ModelWeights, error) {
	step, err := s.Step(i)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 && len(names) != s.dictSize {
		return nil, errors.NewDimensionError("sequence.ExportWeights", s.dictSize, len(names), 0)
	}

	w := &model.ModelWeights{
		ModelType:    "BasisSequenceStep",
		Version:      WeightsVersion,
		Indices:      step.Indices,
		Coefficients: step.Coefficients,
		Hyperparameters: map[string]interface{}{
			"dictionary_size": s.dictSize,
			"step":            i,
		},
		Metadata: map[string]interface{}{
			"residual_sum_of_squares": step.ResidualSumOfSquares,
			"relative_convergence":    step.RelativeConvergence,
			"stop_reason":             s.reason.String(),
		},
		IsFitted: true,
	}
	if len(names) > 0 {
		w.Features = make([]string, len(step.Indices))
		for j, idx := range step.Indices {
			w.Features[j] = names[idx]
		}
	}
	return w, w.Validate()
}
