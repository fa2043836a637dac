package limiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

// ErrLimitExceeded is returned when a search would exceed a configured bound.
var ErrLimitExceeded = errors.New("search limit exceeded")

// Limiter is an interface that defines the method for bounding a strategy search before
// any candidate is generated or distributed
type Limiter interface {
	// Limit returns an error wrapping ErrLimitExceeded when the search over model for a
	// race of totalLaps with the given tolerance is outside the limiter's bounds
	Limit(ctx context.Context, model *core.TrackModel, totalLaps, tolerance int) error
}

// LimiterStrategy is an enumeration of the different strategies that can be used by the Limiter
type LimiterStrategy int

// enumeration of LimiterStrategy
const (
	ToleranceStrategy LimiterStrategy = iota
	CountStrategy
)

func (s LimiterStrategy) String() string {
	switch s {
	case ToleranceStrategy:
		return "tolerance"
	case CountStrategy:
		return "count"
	default:
		return fmt.Sprintf("LimiterStrategy(%d)", int(s))
	}
}

// LimiterConfig holds the bounds shared by the limiters. A zero bound disables the check.
type LimiterConfig struct {
	// MaxTolerance is the largest accepted stint length tolerance.
	MaxTolerance int
	// MaxCandidates is the largest accepted candidate set.
	MaxCandidates int
	// Generator enumerates the candidates counted by the CountStrategy. Defaults to the
	// default search order.
	Generator *solver.Generator
}

// NewLimiter is a factory that creates a new Limiter based on the provided strategy
func NewLimiter(strategy LimiterStrategy, config LimiterConfig) (Limiter, error) {
	switch strategy {
	case ToleranceStrategy:
		return NewToleranceLimiter(config.MaxTolerance)
	case CountStrategy:
		return NewCountLimiter(config.MaxCandidates, config.Generator)
	default:
		return nil, fmt.Errorf("unsupported limiter strategy: %v", strategy)
	}
}
