package config

import (
	"fmt"
	"math"
	"strconv"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// OptimizeArgs are the positional arguments of the optimize command.
type OptimizeArgs struct {
	Track           string
	Tolerance       int
	TotalLaps       int
	StartingLapTime float64
}

// ParseOptimizeArgs parses <track> <tolerance> <totalLaps> <startingLapTime>.
func ParseOptimizeArgs(args []string) (OptimizeArgs, error) {
	if len(args) != 4 {
		return OptimizeArgs{}, fmt.Errorf("expected 4 arguments (track, tolerance, total laps, starting lap time), got %d", len(args))
	}
	out := OptimizeArgs{Track: args[0]}
	if out.Track == "" {
		return OptimizeArgs{}, fmt.Errorf("track name must not be empty")
	}

	var err error
	if out.Tolerance, err = parseCount("tolerance", args[1]); err != nil {
		return OptimizeArgs{}, err
	}
	if out.TotalLaps, err = parseCount("total laps", args[2]); err != nil {
		return OptimizeArgs{}, err
	}
	if out.StartingLapTime, err = parseLapTime(args[3]); err != nil {
		return OptimizeArgs{}, err
	}
	return out, nil
}

// EstimateArgs are the positional arguments of the estimate command.
type EstimateArgs struct {
	StartingLapTime float64
	Compound        core.Compound
	Laps            int
	Rates           string
	Track           string
}

// ParseEstimateArgs parses <startingLapTime> <compound> <laps> <ratesFile> <track>.
func ParseEstimateArgs(args []string) (EstimateArgs, error) {
	if len(args) != 5 {
		return EstimateArgs{}, fmt.Errorf("expected 5 arguments (starting lap time, compound, laps, rates file, track), got %d", len(args))
	}
	var (
		out EstimateArgs
		err error
	)
	if out.StartingLapTime, err = parseLapTime(args[0]); err != nil {
		return EstimateArgs{}, err
	}
	if out.Compound, err = core.ParseCompound(args[1]); err != nil {
		return EstimateArgs{}, err
	}
	if out.Laps, err = parseCount("laps", args[2]); err != nil {
		return EstimateArgs{}, err
	}
	out.Rates, out.Track = args[3], args[4]
	if out.Rates == "" || out.Track == "" {
		return EstimateArgs{}, fmt.Errorf("rates file and track name must not be empty")
	}
	return out, nil
}

func parseCount(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: not an integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %d: must be >= 0", name, n)
	}
	return n, nil
}

func parseLapTime(value string) (float64, error) {
	t, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("invalid starting lap time %q: not a finite number", value)
	}
	if t <= 0 {
		return 0, fmt.Errorf("invalid starting lap time %g: must be > 0", t)
	}
	return t, nil
}
