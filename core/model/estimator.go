package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model that learns from a design matrix and a response.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor is a model that evaluates fitted values.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is a fitted linear model over the columns of X.
type Regressor interface {
	Fitter
	Predictor
	// Coefficients returns one value per column of X.
	Coefficients() []float64
	// Score returns the coefficient of determination on (X, y).
	Score(X, y mat.Matrix) (float64, error)
}
