package solver

import (
	"errors"
	"fmt"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// ErrNoStrategies is returned by Select when there is nothing to choose from.
var ErrNoStrategies = errors.New("no strategies to select from")

// Select returns the minimum-cost strategy. The scan uses a strict less-than
// comparison in input order, so the earliest strategy wins ties.
func Select(scored []core.ScoredStrategy) (core.ScoredStrategy, error) {
	if len(scored) == 0 {
		return core.ScoredStrategy{}, ErrNoStrategies
	}
	best := 0
	for i := 1; i < len(scored); i++ {
		if scored[i].Cost < scored[best].Cost {
			best = i
		}
	}
	return scored[best], nil
}

// Zip pairs candidates with the costs at the same positions.
func Zip(candidates core.CandidateSet, costs []float64) ([]core.ScoredStrategy, error) {
	if len(candidates) != len(costs) {
		return nil, fmt.Errorf("have %d costs for %d candidates", len(costs), len(candidates))
	}
	out := make([]core.ScoredStrategy, len(candidates))
	for i, s := range candidates {
		out[i] = core.ScoredStrategy{Strategy: s, Cost: costs[i]}
	}
	return out, nil
}
