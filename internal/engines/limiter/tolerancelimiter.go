package limiter

import (
	"context"
	"fmt"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// ToleranceLimiter rejects tolerances above a fixed bound. The candidate count grows
// exponentially with the tolerance.
type ToleranceLimiter struct {
	maxTolerance int
}

// NewToleranceLimiter creates a ToleranceLimiter. A zero bound accepts any tolerance.
func NewToleranceLimiter(maxTolerance int) (*ToleranceLimiter, error) {
	if maxTolerance < 0 {
		return nil, fmt.Errorf("max tolerance must be >= 0, got %d", maxTolerance)
	}
	return &ToleranceLimiter{maxTolerance: maxTolerance}, nil
}

func (l *ToleranceLimiter) Limit(_ context.Context, _ *core.TrackModel, _, tolerance int) error {
	if tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %d", tolerance)
	}
	if l.maxTolerance > 0 && tolerance > l.maxTolerance {
		return fmt.Errorf("%w: tolerance %d is above the maximum of %d", ErrLimitExceeded, tolerance, l.maxTolerance)
	}
	return nil
}
