package solver

import (
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// Cost model constants, in seconds.
const (
	// DegradationGrowth makes the per-lap loss grow with tyre age: lap l loses l*d*(1+growth*l).
	DegradationGrowth = 0.02
	// UnsafeStintPenalty is charged for a stint longer than the compound's average stint length.
	UnsafeStintPenalty = 100.0
	// BasePitStopPenalty is the time lost in the pit lane for the first stop.
	BasePitStopPenalty = 25.0
	// PitStopPenaltyStep is added per successive stop: stop k (1-based) costs base + step*k.
	PitStopPenaltyStep = 5.0
)

// Score returns the modeled total race time of a strategy. It is pure and deterministic.
//
// The strategy is assumed to be valid for the model (see core.Strategy.Validate); a stint
// on a compound missing from the model is scored with zero degradation and always
// counts as unsafe.
func Score(strategy core.Strategy, model *core.TrackModel, startingLapTime float64) float64 {
	total := 0.0
	for i, stint := range strategy {
		rates, _ := model.Rates(stint.Compound)
		d := rates.AverageDegradation
		for lap := range stint.Laps {
			l := float64(lap)
			total += startingLapTime + l*d*(1+DegradationGrowth*l)
		}
		if stint.Laps > rates.AverageStintLength {
			total += UnsafeStintPenalty
		}
		if i < len(strategy)-1 {
			total += BasePitStopPenalty + PitStopPenaltyStep*float64(i+1)
		}
	}
	return total
}

// StintTime estimates a single stint with linear degradation: every lap is d slower
// than the previous one.
func StintTime(startingLapTime, degradation float64, laps int) float64 {
	total := 0.0
	lapTime := startingLapTime
	for range laps {
		total += lapTime
		lapTime += degradation
	}
	return total
}
