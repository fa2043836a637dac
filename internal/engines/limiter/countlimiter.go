package limiter

import (
	"context"
	"fmt"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

// countCheckInterval is how many candidates are counted between context checks.
const countCheckInterval = 4096

// CountLimiter walks the candidate sequence lazily and rejects the search as soon as it
// yields more than the configured number of strategies, without materializing any of them
// beyond the current one.
type CountLimiter struct {
	maxCandidates int
	generator     *solver.Generator
}

// NewCountLimiter creates a CountLimiter. A zero bound accepts any count.
func NewCountLimiter(maxCandidates int, generator *solver.Generator) (*CountLimiter, error) {
	if maxCandidates < 0 {
		return nil, fmt.Errorf("max candidates must be >= 0, got %d", maxCandidates)
	}
	if generator == nil {
		generator = solver.NewGenerator()
	}
	return &CountLimiter{maxCandidates: maxCandidates, generator: generator}, nil
}

func (l *CountLimiter) Limit(ctx context.Context, model *core.TrackModel, totalLaps, tolerance int) error {
	if l.maxCandidates == 0 {
		return nil
	}
	logger := logging.FromContext(ctx)

	n := 0
	for range l.generator.Strategies(model, totalLaps, tolerance) {
		n++
		if n > l.maxCandidates {
			return fmt.Errorf("%w: more than %d candidates for %d laps at tolerance %d",
				ErrLimitExceeded, l.maxCandidates, totalLaps, tolerance)
		}
		if n%countCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	logger.V(logging.DEBUG).Info("Candidate count within limit", "candidates", n, "max", l.maxCandidates)
	return nil
}
