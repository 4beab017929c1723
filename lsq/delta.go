package lsq

import (
	"fmt"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

// Rank pairs the position of a conserved column in the new active set with its
// position in the previous one.
type Rank struct {
	New int
	Old int
}

// Delta describes how one active set turns into the next, by position rather
// than by dictionary index.
//
//   - Added: positions in the new set of entries absent from the old set.
//   - Conserved: entries present in both sets, with both positions.
//   - Removed: positions in the old set of entries absent from the new set.
//
// All three slices are sorted ascending (Conserved by New).
type Delta struct {
	Added     []int
	Conserved []Rank
	Removed   []int
}

// NewDelta computes the delta between the ordered index sets prev and next.
func NewDelta(prev, next []int) (Delta, error) {
	oldPos, err := positions(prev, "prev")
	if err != nil {
		return Delta{}, err
	}
	newPos, err := positions(next, "next")
	if err != nil {
		return Delta{}, err
	}

	var d Delta
	for j, idx := range next {
		if i, ok := oldPos[idx]; ok {
			d.Conserved = append(d.Conserved, Rank{New: j, Old: i})
			continue
		}
		d.Added = append(d.Added, j)
	}
	for i, idx := range prev {
		if _, ok := newPos[idx]; !ok {
			d.Removed = append(d.Removed, i)
		}
	}
	return d, nil
}

func positions(indices []int, name string) (map[int]int, error) {
	pos := make(map[int]int, len(indices))
	for i, idx := range indices {
		if _, dup := pos[idx]; dup {
			return nil, errors.NewValidationError(name, fmt.Sprintf("index %d appears twice", idx), indices)
		}
		pos[idx] = i
	}
	return pos, nil
}

// SizeChange returns len(Added) - len(Removed).
func (d Delta) SizeChange() int { return len(d.Added) - len(d.Removed) }

// IsEmpty reports whether the delta adds and removes nothing.
func (d Delta) IsEmpty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// ConservedOld returns the old positions of the conserved entries.
func (d Delta) ConservedOld() []int {
	out := make([]int, len(d.Conserved))
	for i, r := range d.Conserved {
		out[i] = r.Old
	}
	return out
}

// validateOrdered checks that d can be applied to a factorization of oldSize
// columns without reordering: conserved columns keep their relative order and
// occupy the leading positions, added columns fill the tail.
func (d Delta) validateOrdered(oldSize int) error {
	if len(d.Conserved)+len(d.Removed) != oldSize {
		return errors.NewDimensionError("lsq.Delta", oldSize, len(d.Conserved)+len(d.Removed), 1)
	}
	seen := make([]bool, oldSize)
	prevOld := -1
	for j, r := range d.Conserved {
		if r.New != j {
			return errors.NewValueError("lsq.Delta",
				fmt.Sprintf("conserved column %d sits at rank %d, want %d", r.Old, r.New, j))
		}
		if r.Old <= prevOld || r.Old >= oldSize {
			return errors.NewValueError("lsq.Delta",
				fmt.Sprintf("conserved rank %d breaks the column order", r.Old))
		}
		prevOld = r.Old
		seen[r.Old] = true
	}
	prevRemoved := -1
	for _, i := range d.Removed {
		if i <= prevRemoved || i < 0 || i >= oldSize || seen[i] {
			return errors.NewValueError("lsq.Delta", fmt.Sprintf("invalid removed rank %d", i))
		}
		prevRemoved = i
	}
	for j, rank := range d.Added {
		if rank != len(d.Conserved)+j {
			return errors.NewValueError("lsq.Delta",
				fmt.Sprintf("added rank %d is not at the tail (want %d)", rank, len(d.Conserved)+j))
		}
	}
	return nil
}
