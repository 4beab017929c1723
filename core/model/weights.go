package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// ModelWeights is the portable JSON form of one fitted sparse model.
type ModelWeights struct {
	// ModelType names the producer, e.g. "BasisSequenceStep".
	ModelType string `json:"model_type"`

	// Version guards the format.
	Version string `json:"version"`

	// Indices are the dictionary indices of the active basis functions.
	Indices []int `json:"indices"`

	// Coefficients holds one value per entry of Indices.
	Coefficients []float64 `json:"coefficients"`

	// Features names the active basis functions (optional).
	Features []string `json:"features,omitempty"`

	// Hyperparameters records the build configuration.
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata carries fit statistics such as the residual sum of squares.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	IsFitted bool `json:"is_fitted"`
}

// ToJSON serializes the weights.
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON deserializes the weights.
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate checks the internal consistency of the weights.
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if len(mw.Indices) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Indices), len(mw.Coefficients), 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Indices) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Indices), len(mw.Features), 0)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("is_fitted", "unfitted weights must not carry coefficients", mw.IsFitted)
	}
	return nil
}

// Clone returns a deep copy.
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		IsFitted:        mw.IsFitted,
		Indices:         append([]int(nil), mw.Indices...),
		Coefficients:    append([]float64(nil), mw.Coefficients...),
		Features:        append([]string(nil), mw.Features...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
