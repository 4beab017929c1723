// Package design evaluates a dictionary of basis functions on a fixed sample
// and serves the resulting design-matrix columns to the basis sequence builder.
//
// Columns are computed lazily and cached. Concurrent first access to the same
// column evaluates it once; every later read returns the cached slice, which
// callers must treat as read-only.
package design

import (
	"fmt"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/YuminosukeSato/sparsepce/basis"
	"github.com/YuminosukeSato/sparsepce/core/parallel"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rows below this are evaluated on the calling goroutine
const parallelThreshold = 2048

// Provider exposes the design matrix of a dictionary on a sample.
type Provider interface {
	// SampleSize returns N, the number of rows.
	SampleSize() int
	// Size returns P, the number of dictionary columns.
	Size() int
	// Column returns column i. The slice is shared and must not be modified.
	Column(i int) ([]float64, error)
	// Columns returns the N×len(indices) matrix of the requested columns.
	Columns(indices []int) (*mat.Dense, error)
}

// Proxy is the Provider over a basis.Basis evaluated on a sample.
type Proxy struct {
	x    mat.Matrix
	dict basis.Basis
	n    int

	slots []columnSlot

	mu     sync.Mutex
	cached *roaring.Bitmap
}

type columnSlot struct {
	once sync.Once
	data []float64
	norm float64
	err  error
}

// NewProxy wraps the N×d sample x and the dictionary dict. Nothing is evaluated
// until a column is requested.
func NewProxy(x mat.Matrix, dict basis.Basis) (*Proxy, error) {
	if x == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "design.NewProxy: nil sample")
	}
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "design.NewProxy: empty sample")
	}
	dim, err := dict.Dimension()
	if err != nil {
		return nil, err
	}
	if dim != d {
		return nil, errors.NewDimensionError("design.NewProxy", dim, d, 1)
	}
	return &Proxy{
		x:      x,
		dict:   dict,
		n:      n,
		slots:  make([]columnSlot, len(dict)),
		cached: roaring.New(),
	}, nil
}

// NewMatrixProxy serves the columns of an already evaluated N×P design matrix.
// The matrix is copied.
func NewMatrixProxy(psi mat.Matrix) (*Proxy, error) {
	if psi == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "design.NewMatrixProxy: nil matrix")
	}
	n, p := psi.Dims()
	if n == 0 || p == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "design.NewMatrixProxy: empty matrix")
	}
	if err := errors.CheckMatrix("design.NewMatrixProxy", psi); err != nil {
		return nil, err
	}
	px := &Proxy{
		n:      n,
		slots:  make([]columnSlot, p),
		cached: roaring.New(),
	}
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, psi)
		slot := &px.slots[j]
		slot.once.Do(func() {
			slot.data = col
			slot.norm = floats.Norm(col, 2)
		})
		px.cached.Add(uint32(j))
	}
	return px, nil
}

// SampleSize implements Provider.
func (p *Proxy) SampleSize() int { return p.n }

// Size implements Provider.
func (p *Proxy) Size() int { return len(p.slots) }

// Column implements Provider.
func (p *Proxy) Column(i int) ([]float64, error) {
	slot, err := p.slot(i)
	if err != nil {
		return nil, err
	}
	return slot.data, nil
}

// Norm returns the Euclidean norm of column i.
func (p *Proxy) Norm(i int) (float64, error) {
	slot, err := p.slot(i)
	if err != nil {
		return 0, err
	}
	return slot.norm, nil
}

// Columns implements Provider.
func (p *Proxy) Columns(indices []int) (*mat.Dense, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "design.Proxy.Columns: no indices")
	}
	out := mat.NewDense(p.n, len(indices), nil)
	for j, idx := range indices {
		col, err := p.Column(idx)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, col)
	}
	return out, nil
}

// Cached returns the set of columns evaluated so far.
func (p *Proxy) Cached() *roaring.Bitmap {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached.Clone()
}

func (p *Proxy) slot(i int) (*columnSlot, error) {
	if i < 0 || i >= len(p.slots) {
		return nil, errors.NewValueError("design.Proxy.Column",
			fmt.Sprintf("index %d out of range [0, %d)", i, len(p.slots)))
	}
	slot := &p.slots[i]
	slot.once.Do(func() {
		slot.data, slot.err = p.evaluate(i)
		if slot.err == nil {
			slot.norm = floats.Norm(slot.data, 2)
			p.mu.Lock()
			p.cached.Add(uint32(i))
			p.mu.Unlock()
		}
	})
	return slot, slot.err
}

func (p *Proxy) evaluate(i int) ([]float64, error) {
	f := p.dict[i]
	_, d := p.x.Dims()
	col := make([]float64, p.n)
	parallel.ParallelizeWithThreshold(p.n, parallelThreshold, func(start, end int) {
		row := make([]float64, d)
		for r := start; r < end; r++ {
			mat.Row(row, r, p.x)
			col[r] = f.Evaluate(row)
		}
	})
	for r, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(
				errors.NewNumericalInstabilityError("design.Proxy.Column", []float64{v}, r),
				"basis function %d (%s) is not finite on sample row %d", i, f, r)
		}
	}
	return col, nil
}
