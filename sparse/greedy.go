package sparse

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// greedyPolicy adds one candidate per step, the one with the largest score
// against the residual. It never removes.
type greedyPolicy struct {
	name  string
	score ScoreFunc
}

func (g *greedyPolicy) Name() string { return g.name }

func (g *greedyPolicy) Reset(*State) error { return nil }

func (g *greedyPolicy) Propose(st *State) (Proposal, error) {
	candidates := st.Inactive()
	if len(candidates) == 0 {
		return Proposal{}, nil
	}

	scores, errs := scoreCandidates(st, candidates, func(idx int, col []float64) float64 {
		return g.score(idx, col, st.Residual)
	})
	threshold := st.ScoreTolerance * floats.Norm(st.Residual, 2)
	best, invalid, err := pickBest(candidates, scores, errs, threshold)
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

func (g *greedyPolicy) Observe(*State) error { return nil }

// correlationScore is |<ψ, r>| / ‖ψ‖.
func correlationScore(_ int, column, residual []float64) float64 {
	norm := floats.Norm(column, 2)
	if norm == 0 {
		return 0
	}
	return math.Abs(floats.Dot(column, residual)) / norm
}
