// Package core provides the fundamental data structures of the race strategy optimizer.
//
// This package contains the domain models shared by the generator, the simulator and the
// distribution layer:
//
//   - Compound: a tyre hardness class (HARD, MEDIUM, SOFT, ...)
//   - TrackModel: the immutable per-track table of degradation and stint-length rates
//   - Stint: a contiguous run of laps on one compound
//   - Strategy: the chronological sequence of stints covering the race distance
//   - CandidateSet: the ordered collection of strategies under evaluation
//   - ScoredStrategy: a strategy paired with its modeled race time
//   - Partition: the contiguous slice of a CandidateSet owned by one participant
//
// Example usage:
//
//	model, err := core.LoadTrackModel("rates.json", "Bahrain Grand Prix")
//	if err != nil {
//	    return err
//	}
//
//	strategy := core.Strategy{
//	    {Compound: core.Soft, Laps: 20},
//	    {Compound: core.Hard, Laps: 37},
//	}
//	if err := strategy.Validate(model, 57); err != nil {
//	    return err
//	}
//
// The core package is designed to be:
//   - Immutable where possible (TrackModel never changes after construction)
//   - Validated at construction time, so algorithms never meet a missing field
//   - Independent of any transport or storage concern
package core
