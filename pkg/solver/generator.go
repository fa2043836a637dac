package solver

import (
	"iter"
	"slices"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// Generator enumerates every stint sequence that exactly covers a race.
// It holds no state beyond the compound search order and may be shared freely.
type Generator struct {
	compounds []core.Compound
}

// NewGenerator creates a Generator exploring the given compounds in order.
// With no compounds it uses core.DefaultSearchCompounds.
func NewGenerator(compounds ...core.Compound) *Generator {
	if len(compounds) == 0 {
		compounds = core.DefaultSearchCompounds()
	}
	return &Generator{compounds: slices.Clone(compounds)}
}

// Compounds returns the search order.
func (g *Generator) Compounds() []core.Compound {
	return slices.Clone(g.compounds)
}

// Generate materializes the full candidate set. Compounds absent from the model are skipped.
// Identical strategies reachable through different branches are all kept.
func (g *Generator) Generate(model *core.TrackModel, totalLaps, tolerance int) core.CandidateSet {
	return slices.Collect(g.Strategies(model, totalLaps, tolerance))
}

// Strategies returns a lazy sequence yielding the same strategies as Generate, in the same
// order. Each yielded strategy is freshly allocated and owned by the caller. The sequence
// is deterministic, so ranging over it again restarts the enumeration.
func (g *Generator) Strategies(model *core.TrackModel, totalLaps, tolerance int) iter.Seq[core.Strategy] {
	return func(yield func(core.Strategy) bool) {
		if totalLaps < 0 {
			return
		}
		g.walk(model, totalLaps, tolerance, nil, yield)
	}
}

// Count returns the number of candidates, giving up once it exceeds limit.
// The second result reports whether the count is exact. A limit <= 0 counts everything.
func (g *Generator) Count(model *core.TrackModel, totalLaps, tolerance, limit int) (int, bool) {
	n := 0
	for range g.Strategies(model, totalLaps, tolerance) {
		n++
		if limit > 0 && n > limit {
			return n, false
		}
	}
	return n, true
}

func (g *Generator) walk(
	model *core.TrackModel,
	remainingLaps, tolerance int,
	prefix core.Strategy,
	yield func(core.Strategy) bool,
) bool {
	if remainingLaps == 0 {
		return yield(prefix)
	}
	for _, compound := range g.compounds {
		rates, ok := model.Rates(compound)
		if !ok {
			continue
		}
		for _, laps := range stintLengths(rates.AverageStintLength, tolerance, remainingLaps) {
			if !g.walk(model, remainingLaps-laps, tolerance, prefix.With(compound, laps), yield) {
				return false
			}
		}
	}
	return true
}

// stintLengths lists the stint lengths tried for a compound: the window
// [max(1, avg-tolerance), avg+tolerance] in increasing order, where a length past the
// remaining distance is clamped to it and closes the list.
func stintLengths(avg, tolerance, remainingLaps int) []int {
	var out []int
	for laps := max(1, avg-tolerance); laps <= avg+tolerance; laps++ {
		if laps >= remainingLaps {
			return append(out, remainingLaps)
		}
		out = append(out, laps)
	}
	return out
}
