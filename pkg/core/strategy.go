package core

import (
	"fmt"
	"slices"
	"strings"
)

// Stint is a contiguous run of laps on one compound. Laps is always >= 1.
type Stint struct {
	Compound Compound `json:"compound" yaml:"compound"`
	Laps     int      `json:"laps" yaml:"laps"`
}

// Strategy is the chronological sequence of stints of a race.
// A valid strategy covers the race distance exactly; it is empty only for a zero-lap race.
type Strategy []Stint

// With returns a new strategy made of s followed by one more stint.
// The receiver is never modified, so prefixes can be shared between branches.
func (s Strategy) With(compound Compound, laps int) Strategy {
	return append(slices.Clip(s), Stint{Compound: compound, Laps: laps})
}

// TotalLaps returns the sum of the stint lengths.
func (s Strategy) TotalLaps() int {
	total := 0
	for _, stint := range s {
		total += stint.Laps
	}
	return total
}

// PitStops returns the number of tyre changes the strategy requires.
func (s Strategy) PitStops() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

// Validate checks the structural invariants of the strategy against a track model:
// every stint is at least one lap long, every compound is present in the model
// and the stints add up to exactly totalLaps.
func (s Strategy) Validate(model *TrackModel, totalLaps int) error {
	for i, stint := range s {
		if stint.Laps < 1 {
			return fmt.Errorf("%w: stint %d has %d laps", ErrInvalidStrategy, i, stint.Laps)
		}
		if _, ok := model.Rates(stint.Compound); !ok {
			return fmt.Errorf("%w: stint %d uses compound %s absent from track %q",
				ErrInvalidStrategy, i, stint.Compound, model.Name())
		}
	}
	if got := s.TotalLaps(); got != totalLaps {
		return fmt.Errorf("%w: stints cover %d laps, race has %d", ErrInvalidStrategy, got, totalLaps)
	}
	return nil
}

// String renders the strategy as "SOFT:10 -> HARD:20".
func (s Strategy) String() string {
	if len(s) == 0 {
		return "<no stints>"
	}
	parts := make([]string, len(s))
	for i, stint := range s {
		parts[i] = fmt.Sprintf("%s:%d", stint.Compound, stint.Laps)
	}
	return strings.Join(parts, " -> ")
}

// CandidateSet is the ordered collection of strategies under evaluation.
// Result vectors are matched to it by position, so its order is significant.
type CandidateSet []Strategy

// ScoredStrategy pairs a strategy with its modeled total race time in seconds.
type ScoredStrategy struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Cost     float64  `json:"cost" yaml:"cost"`
}
