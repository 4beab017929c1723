package sparse

import (
	"math"

	"github.com/YuminosukeSato/sparsepce/core/parallel"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const (
	// larsEps bounds step lengths and denominators away from zero.
	larsEps = 1e-12
	// larsTie is the relative margin by which an event must come before the
	// current one to replace it. Rounding alone never triggers an event.
	larsTie = 1e-9
)

// larsPolicy follows the least angle regression path on the normalized
// columns x_j/‖x_j‖ with the lasso modification.
//
// The policy keeps its own path: the fitted vector mu and the path
// coefficients of the active functions. After each accepted step it moves mu
// along the equiangular direction of the active set up to the next event,
// either a candidate whose correlation catches up or an active coefficient
// crossing zero, and proposes that event next. The builder refits exact least
// squares on every active set, so only the sequence of sets comes from the
// path.
type larsPolicy struct {
	mu      []float64
	beta    map[int]float64
	pending Proposal
}

func (l *larsPolicy) Name() string { return LeastAngle.String() }

func (l *larsPolicy) Reset(st *State) error {
	l.mu = make([]float64, len(st.Centered))
	l.beta = make(map[int]float64)
	l.pending = Proposal{}
	return nil
}

func (l *larsPolicy) pathResidual(st *State) []float64 {
	res := make([]float64, len(st.Centered))
	floats.SubTo(res, st.Centered, l.mu)
	return res
}

func (l *larsPolicy) Propose(st *State) (Proposal, error) {
	if p, ok := l.takePending(st); ok {
		return p, nil
	}

	// no valid event on the path: restart from the most correlated candidate
	candidates := st.Inactive()
	if len(candidates) == 0 {
		return Proposal{}, nil
	}
	res := l.pathResidual(st)
	scores, errs := scoreCandidates(st, candidates, func(_ int, col []float64) float64 {
		return correlationScore(0, col, res)
	})
	best, invalid, err := pickBest(candidates, scores, errs, st.ScoreTolerance*floats.Norm(res, 2))
	if err != nil {
		return Proposal{}, err
	}
	p := Proposal{Invalid: invalid}
	if best >= 0 {
		p.Add = []int{candidates[best]}
		p.Score = scores[best]
	}
	return p, nil
}

func (l *larsPolicy) takePending(st *State) (Proposal, bool) {
	p := l.pending
	l.pending = Proposal{}
	switch {
	case len(p.Add) == 1:
		return p, st.Admissible(p.Add[0])
	case len(p.Remove) == 1:
		return p, st.ActiveSet.Contains(uint32(p.Remove[0]))
	default:
		return Proposal{}, false
	}
}

func (l *larsPolicy) Observe(st *State) error {
	active := st.Active
	k := len(active)
	l.pending = Proposal{}
	for idx := range l.beta {
		if !st.ActiveSet.Contains(uint32(idx)) {
			delete(l.beta, idx)
		}
	}
	if k == 0 {
		return nil
	}

	res := l.pathResidual(st)

	// signed correlations of the active set
	norms := make([]float64, k)
	signs := make([]float64, k)
	cols := make([][]float64, k)
	var maxCorr float64
	for j, idx := range active {
		col, err := st.Provider.Column(idx)
		if err != nil {
			return err
		}
		cols[j] = col
		norms[j] = floats.Norm(col, 2)
		if norms[j] == 0 {
			return errors.NewNumericalInstabilityError("LeastAngle.Observe", []float64{0}, st.Step)
		}
		c := floats.Dot(col, res) / norms[j]
		maxCorr = math.Max(maxCorr, math.Abs(c))
		signs[j] = sign(c, l.beta[idx])
	}

	// d = G⁻¹s for the Gram matrix G of the normalized columns, which is
	// D (AᵀA)⁻¹ D with D = diag(norms).
	scaled := make([]float64, k)
	floats.MulTo(scaled, norms, signs)
	g, err := st.Solver.SolveGram(scaled)
	if err != nil {
		return err
	}
	d := make([]float64, k)
	floats.MulTo(d, norms, g)
	sd := floats.Dot(signs, d)
	if !(sd > 0) || math.IsInf(sd, 0) {
		return errors.NewNumericalInstabilityError("LeastAngle.Observe", []float64{sd}, st.Step)
	}
	aa := 1 / math.Sqrt(sd)
	w := d
	floats.Scale(aa, w)

	u := make([]float64, len(res))
	for j := range active {
		floats.AddScaled(u, w[j]/norms[j], cols[j])
	}

	// smallest step at which an inactive candidate ties the active correlation
	gamma := maxCorr / aa
	enter := -1
	candidates := st.Inactive()
	cs := make([]float64, len(candidates))
	as := make([]float64, len(candidates))
	usable := make([]bool, len(candidates))
	parallel.Parallelize(len(candidates), func(start, end int) {
		for i := start; i < end; i++ {
			// failing columns are reported by the next fallback proposal
			col, err := st.Provider.Column(candidates[i])
			if err != nil {
				continue
			}
			n := floats.Norm(col, 2)
			if n == 0 {
				continue
			}
			cs[i] = floats.Dot(col, res) / n
			as[i] = floats.Dot(col, u) / n
			usable[i] = true
		}
	})
	for i, idx := range candidates {
		if !usable[i] {
			continue
		}
		for _, step := range []float64{
			positiveRatio(maxCorr-cs[i], aa-as[i]),
			positiveRatio(maxCorr+cs[i], aa+as[i]),
		} {
			if step > larsEps && step < gamma*(1-larsTie) {
				gamma = step
				enter = idx
			}
		}
	}

	// lasso: an active coefficient reaching zero first leaves the set
	drop := -1
	for j, idx := range active {
		if w[j] == 0 {
			continue
		}
		step := -l.beta[idx] / w[j]
		if step > larsEps && step < gamma*(1-larsTie) {
			gamma = step
			drop = idx
		}
	}

	floats.AddScaled(l.mu, gamma, u)
	for j, idx := range active {
		l.beta[idx] += gamma * w[j]
	}

	switch {
	case drop >= 0:
		l.beta[drop] = 0
		l.pending = Proposal{Remove: []int{drop}}
	case enter >= 0:
		l.pending = Proposal{Add: []int{enter}, Score: maxCorr - gamma*aa}
	}
	return nil
}

// sign of the correlation c, falling back to the sign of the path coefficient
// when c vanishes.
func sign(c, beta float64) float64 {
	switch {
	case c > 0:
		return 1
	case c < 0:
		return -1
	case beta < 0:
		return -1
	default:
		return 1
	}
}

func positiveRatio(num, den float64) float64 {
	if math.Abs(den) < larsEps {
		return math.Inf(1)
	}
	r := num / den
	if r <= 0 {
		return math.Inf(1)
	}
	return r
}
