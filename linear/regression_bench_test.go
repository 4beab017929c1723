package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData draws X uniformly in [-1, 1] and y = Xw plus small noise.
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * float64(j+1) * 0.5
		}
		y.Set(i, 0, sum+(rng.Float64()-0.5)*0.1)
	}
	return X, y
}

func BenchmarkLeastSquaresFit(b *testing.B) {
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Small_100x10", 100, 10},
		{"Small_500x10", 500, 10},
		{"Medium_2000x10", 2000, 10},
		{"Large_10000x20", 10000, 20},
		{"XLarge_50000x50", 50000, 50},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := NewLeastSquares().Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLeverages compares the sequential path (below the threshold) with
// the parallel one.
func BenchmarkLeverages(b *testing.B) {
	sizes := []struct {
		name      string
		rows      int
		threshold int
	}{
		{"Sequential_5000", 5000, 1 << 30},
		{"Parallel_5000", 5000, 1000},
		{"Parallel_50000", 50000, 1000},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, 20)
			ls := NewLeastSquares(WithParallelThreshold(size.threshold))
			if err := ls.Fit(X, y); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ls.Leverages(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
