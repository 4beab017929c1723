package sequence

import (
	"fmt"

	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotCoefficientPaths draws the coefficient of every function that is active
// at some step against the step number and saves the figure to filename. The
// format follows the extension (.png, .svg, .pdf, ...). names labels the
// dictionary functions; without it functions are labelled by index.
func (s *BasisSequence) PlotCoefficientPaths(filename string, names []string) error {
	if len(s.steps) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "sequence.PlotCoefficientPaths")
	}
	if len(names) > 0 && len(names) != s.dictSize {
		return errors.NewDimensionError("sequence.PlotCoefficientPaths", s.dictSize, len(names), 0)
	}

	p := plot.New()
	p.Title.Text = "Coefficient paths"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "coefficient"
	p.Add(plotter.NewGrid())

	for k, idx := range s.everActive() {
		pts := make(plotter.XYs, len(s.steps))
		for t := range s.steps {
			dense, err := s.Dense(t)
			if err != nil {
				return err
			}
			pts[t].X = float64(t + 1)
			pts[t].Y = dense[idx]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "coefficient path of function %d", idx)
		}
		line.Color = plotutil.Color(k)
		line.Dashes = plotutil.Dashes(k / len(plotutil.DefaultColors))
		p.Add(line)

		label := fmt.Sprintf("ψ%d", idx)
		if len(names) > 0 {
			label = names[idx]
		}
		p.Legend.Add(label, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return errors.Wrap(err, "failed to save coefficient paths")
	}
	return nil
}

// everActive lists the indices active at some step, in order of first entry.
func (s *BasisSequence) everActive() []int {
	var out []int
	seen := make(map[int]bool)
	for _, st := range s.steps {
		for _, idx := range st.Indices {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}
