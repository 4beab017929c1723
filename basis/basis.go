// Package basis provides the candidate dictionaries evaluated by the design
// provider: scalar functions of a d-dimensional input, univariate orthogonal
// polynomial families and their tensor products enumerated by total degree.
package basis

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// Function is a scalar function of a point in R^d.
type Function interface {
	// Evaluate returns the function value at x. len(x) equals Dimension().
	Evaluate(x []float64) float64
	// Dimension returns the expected input dimension.
	Dimension() int
	String() string
}

// Basis is an ordered dictionary of candidate functions, indexed 0..Size()-1.
type Basis []Function

// Size returns the number of candidate functions.
func (b Basis) Size() int { return len(b) }

// Dimension returns the input dimension shared by every function of b.
func (b Basis) Dimension() (int, error) {
	if len(b) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "basis: empty dictionary")
	}
	dim := b[0].Dimension()
	for i, f := range b[1:] {
		if f.Dimension() != dim {
			return 0, errors.NewValidationError("basis",
				fmt.Sprintf("function %d has input dimension %d, want %d", i+1, f.Dimension(), dim), f.String())
		}
	}
	return dim, nil
}

// Names returns the String() of every function, in dictionary order.
func (b Basis) Names() []string {
	names := make([]string, len(b))
	for i, f := range b {
		names[i] = f.String()
	}
	return names
}

// FunctionFunc adapts a plain Go function to Function.
type FunctionFunc struct {
	Dim  int
	Name string
	Fn   func(x []float64) float64
}

// Evaluate implements Function.
func (f FunctionFunc) Evaluate(x []float64) float64 { return f.Fn(x) }

// Dimension implements Function.
func (f FunctionFunc) Dimension() int { return f.Dim }

func (f FunctionFunc) String() string {
	if f.Name == "" {
		return "func"
	}
	return f.Name
}

// Univariate is a single family member of a given degree applied to one
// coordinate of the input.
type Univariate struct {
	Family   Family
	Degree   int
	Variable int
	Dim      int
}

// NewUnivariate returns the degree-th member of family acting on the only
// coordinate of a one-dimensional input.
func NewUnivariate(family Family, degree int) *Univariate {
	return &Univariate{Family: family, Degree: degree, Variable: 0, Dim: 1}
}

// Evaluate implements Function.
func (u *Univariate) Evaluate(x []float64) float64 {
	return u.Family.Evaluate(u.Degree, x[u.Variable])
}

// Dimension implements Function.
func (u *Univariate) Dimension() int { return u.Dim }

func (u *Univariate) String() string {
	return fmt.Sprintf("%s%d(x%d)", u.Family.Name(), u.Degree, u.Variable)
}

// Product is the tensor product of one family member per input coordinate.
type Product struct {
	families   []Family
	multiIndex []int
}

// NewProduct builds the product prod_i families[i]_{multiIndex[i]}(x_i).
func NewProduct(families []Family, multiIndex []int) (*Product, error) {
	if len(families) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "basis.NewProduct: no families")
	}
	if len(families) != len(multiIndex) {
		return nil, errors.NewDimensionError("basis.NewProduct", len(families), len(multiIndex), 1)
	}
	for i, d := range multiIndex {
		if d < 0 {
			return nil, errors.NewValidationError("multiIndex", fmt.Sprintf("degree of variable %d is negative", i), d)
		}
	}
	idx := make([]int, len(multiIndex))
	copy(idx, multiIndex)
	return &Product{families: families, multiIndex: idx}, nil
}

// Evaluate implements Function.
func (p *Product) Evaluate(x []float64) float64 {
	v := 1.0
	for i, d := range p.multiIndex {
		if d == 0 {
			continue
		}
		v *= p.families[i].Evaluate(d, x[i])
	}
	return v
}

// Dimension implements Function.
func (p *Product) Dimension() int { return len(p.families) }

// MultiIndex returns a copy of the per-variable degrees.
func (p *Product) MultiIndex() []int {
	idx := make([]int, len(p.multiIndex))
	copy(idx, p.multiIndex)
	return idx
}

// TotalDegree returns the sum of the per-variable degrees.
func (p *Product) TotalDegree() int {
	total := 0
	for _, d := range p.multiIndex {
		total += d
	}
	return total
}

func (p *Product) String() string {
	var parts []string
	for i, d := range p.multiIndex {
		if d == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%d(x%d)", p.families[i].Name(), d, i))
	}
	if len(parts) == 0 {
		return "1"
	}
	return strings.Join(parts, "*")
}

// NewTensorized enumerates every product of the given families with total
// degree at most maxDegree. Within a total degree, multi-indices come in
// decreasing order of the first coordinate, so for two variables the order is
// 1, x0, x1, x0², x0·x1, x1², ...
func NewTensorized(families []Family, maxDegree int) (Basis, error) {
	if len(families) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "basis.NewTensorized: no families")
	}
	if maxDegree < 0 {
		return nil, errors.NewValidationError("maxDegree", "must be non-negative", maxDegree)
	}

	var out Basis
	for total := 0; total <= maxDegree; total++ {
		for _, idx := range compositions(total, len(families)) {
			p, err := NewProduct(families, idx)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// NewUnivariateBasis returns {family_0, ..., family_maxDegree} on a
// one-dimensional input.
func NewUnivariateBasis(family Family, maxDegree int) (Basis, error) {
	return NewTensorized([]Family{family}, maxDegree)
}

// compositions lists the ways to write total as an ordered sum of parts
// non-negative integers, first coordinate descending.
func compositions(total, parts int) [][]int {
	if parts == 1 {
		return [][]int{{total}}
	}
	var out [][]int
	for first := total; first >= 0; first-- {
		for _, rest := range compositions(total-first, parts-1) {
			idx := make([]int, 0, parts)
			idx = append(idx, first)
			idx = append(idx, rest...)
			out = append(out, idx)
		}
	}
	return out
}
