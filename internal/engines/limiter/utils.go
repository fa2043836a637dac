package limiter

import (
	"context"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// Chain applies limiters in order and stops at the first rejection.
type Chain []Limiter

func (c Chain) Limit(ctx context.Context, model *core.TrackModel, totalLaps, tolerance int) error {
	for _, l := range c {
		if err := l.Limit(ctx, model, totalLaps, tolerance); err != nil {
			return err
		}
	}
	return nil
}

// FromConfig builds the tolerance limiter followed by the count limiter from config.
func FromConfig(config LimiterConfig) (Chain, error) {
	var chain Chain
	for _, strategy := range []LimiterStrategy{ToleranceStrategy, CountStrategy} {
		l, err := NewLimiter(strategy, config)
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
	}
	return chain, nil
}
