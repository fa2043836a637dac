package solver

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// cancelCheckInterval is how many strategies a worker scores between context checks.
const cancelCheckInterval = 1024

// EvaluateOptions tunes Evaluate.
type EvaluateOptions struct {
	// Parallelism bounds the number of scoring goroutines. Defaults to GOMAXPROCS.
	Parallelism int
	// Rank labels the observations sent to Recorder.
	Rank int
	// Recorder receives the evaluation timing. Defaults to a no-op.
	Recorder metrics.Recorder
}

// Evaluate scores every strategy of candidates and returns the costs by position.
//
// The slice is split into contiguous blocks, one per goroutine; each goroutine writes only
// the block of the pre-sized output it owns, so no locking is needed and the result does
// not depend on completion order.
func Evaluate(
	ctx context.Context,
	candidates []core.Strategy,
	model *core.TrackModel,
	startingLapTime float64,
	opts EvaluateOptions,
) ([]float64, error) {
	logger := logging.FromContext(ctx)
	recorder := metrics.OrNoop(opts.Recorder)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	n := len(candidates)
	costs := make([]float64, n)
	if n == 0 {
		recorder.ObserveEvaluation(opts.Rank, 0, 0)
		return costs, nil
	}
	parallelism = min(parallelism, n)
	block := (n + parallelism - 1) / parallelism

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for lo := 0; lo < n; lo += block {
		hi := min(lo+block, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				costs[i] = Score(candidates[i], model, startingLapTime)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	recorder.ObserveEvaluation(opts.Rank, n, elapsed)

	logger.V(logging.DEBUG).Info("Evaluated partition",
		"rank", opts.Rank,
		"strategies", n,
		"goroutines", parallelism,
		"elapsed", elapsed)
	return costs, nil
}
