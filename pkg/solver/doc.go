// Package solver implements the strategy search of the race strategy optimizer.
//
// The solver package contains the algorithms that enumerate tyre strategies, model their
// total race time and select the fastest one:
//
//   - Generator: exhaustive depth-first enumeration of stint sequences covering the race
//   - Score: the degradation and pit-stop cost model
//   - Evaluate: bounded goroutine fan-out scoring a contiguous slice of candidates
//   - Select: reduction to the minimum-cost strategy, first candidate wins ties
//
// Search Strategy:
//
// For every compound of the track, the generator tries stint lengths within a tolerance
// window around the compound's average stint length:
//  1. Lengths run from max(1, avg-tolerance) to avg+tolerance, ascending
//  2. A length beyond the remaining distance is clamped to it and ends the stint list
//  3. A strategy is emitted once the remaining distance reaches zero
//
// Example usage:
//
//	gen := solver.NewGenerator(core.DefaultSearchCompounds()...)
//	candidates := gen.Generate(model, 57, 2)
//
//	costs, err := solver.Evaluate(ctx, candidates, model, 92.5, solver.EvaluateOptions{})
//	if err != nil {
//	    return err
//	}
//
//	scored, err := solver.Zip(candidates, costs)
//	if err != nil {
//	    return err
//	}
//	best, err := solver.Select(scored)
//	if err != nil {
//	    log.Error(err, "no strategy to select")
//	    return err
//	}
//
// The solver is designed to be:
//   - Deterministic: same inputs produce the same candidates, in the same order, and bit-identical costs
//   - Pure: no package state, observability is passed in explicitly
//   - Lazy when needed: Strategies streams candidates without materializing the set
package solver
