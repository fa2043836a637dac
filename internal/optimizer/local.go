package optimizer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collective"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
)

// RunLocal runs one search over an in-process group of size participants and returns the
// coordinator's result. Worker failures surface through the coordinator's error; a worker
// error is only returned on its own when the coordinator succeeded.
func RunLocal(ctx context.Context, size int, opts Options, req Request) (*Result, error) {
	group, err := collective.NewLocalGroup(size)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = group[collective.Root].Close()
	}()

	var workers errgroup.Group
	for _, ep := range group[1:] {
		workers.Go(func() error {
			err := NewOptimizer(ep, opts).Participate(ctx)
			if err != nil && !errors.Is(err, ErrAborted) {
				logging.FromContext(ctx).V(logging.DEBUG).Info("Local participant failed",
					"rank", ep.Rank(), "error", err.Error())
			}
			return err
		})
	}

	result, err := NewOptimizer(group[collective.Root], opts).Optimize(ctx, req)
	werr := workers.Wait()
	if err != nil {
		return nil, err
	}
	if werr != nil {
		return nil, werr
	}
	return result, nil
}
