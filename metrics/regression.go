// Package metrics provides regression error measures on response vectors.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func check(op string, yTrue, yPred mat.Vector) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func residuals(yTrue, yPred mat.Vector, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = yTrue.AtVec(i) - yPred.AtVec(i)
	}
	return out
}

// SumOfSquares returns Σ(yTrue - yPred)².
func SumOfSquares(yTrue, yPred mat.Vector) (float64, error) {
	n, err := check("SumOfSquares", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	r := residuals(yTrue, yPred, n)
	return floats.Dot(r, r), nil
}

// MSE returns the mean squared error.
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	sum, err := SumOfSquares(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return sum / float64(yTrue.Len()), nil
}

// MSEMatrix is MSE for n×1 matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}
	return MSE(mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)))
}

// RMSE returns the root mean squared error.
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error.
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := check("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Norm(residuals(yTrue, yPred, n), 1) / float64(n), nil
}

// R2Score returns the coefficient of determination 1 - RSS/TSS. It fails when
// yTrue has no variance.
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	n, err := check("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	values := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(values, nil)

	var tss float64
	for _, v := range values {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	r := residuals(yTrue, yPred, n)
	return 1 - floats.Dot(r, r)/tss, nil
}

// Variance returns the population variance of y, the normalizer of relative
// errors.
func Variance(y mat.Vector) (float64, error) {
	if y == nil || y.Len() == 0 {
		return 0, errors.NewValueError("Variance", "empty vector")
	}
	values := mat.Col(nil, 0, y)
	_, v := stat.PopMeanVariance(values, nil)
	return v, nil
}
