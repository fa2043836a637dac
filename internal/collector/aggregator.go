package collector

import (
	"context"
	"errors"
	"math"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

var errNonFinite = errors.New("not a finite number")

// Aggregator computes the rates document from lap data sources.
type Aggregator struct {
	parallelism int
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithParallelism bounds the number of sources parsed at once. Values below one use
// GOMAXPROCS.
func WithParallelism(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.parallelism = n
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{}
	for _, opt := range opts {
		opt(a)
	}
	if a.parallelism < 1 {
		a.parallelism = runtime.GOMAXPROCS(0)
	}
	return a
}

// sourceResult is what one source contributed.
type sourceResult struct {
	samples trackSamples
	races   int
	laps    int
	skipped int
	failed  bool
}

// Aggregate reads every source and returns the pooled rates. Unreadable sources and
// malformed laps are logged and skipped; the only error returned is the cancellation of
// ctx.
func (a *Aggregator) Aggregate(ctx context.Context, sources []LapSource) (v1alpha1.RatesDocument, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	results := make([]sourceResult, len(sources))
	p := pool.New().WithMaxGoroutines(a.parallelism)
	for i, src := range sources {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			results[i] = collectSource(ctx, src)
		})
	}
	p.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(trackSamples)
	var races, laps, skipped, failed int
	for _, r := range results {
		merged.merge(r.samples)
		races += r.races
		laps += r.laps
		skipped += r.skipped
		if r.failed {
			failed++
		}
	}
	doc := merged.rates()

	logger.Info("Aggregated lap data",
		"sources", len(sources),
		"failedSources", failed,
		"races", races,
		"laps", laps,
		"skippedLaps", skipped,
		"tracks", len(doc),
		"elapsed", time.Since(start))
	return doc, nil
}

func collectSource(ctx context.Context, src LapSource) sourceResult {
	logger := logging.FromContext(ctx).WithValues("source", src.Name())

	doc, err := src.Races(ctx)
	if err != nil {
		logger.Error(err, "Skipping unreadable lap data source")
		return sourceResult{failed: true}
	}

	result := sourceResult{samples: make(trackSamples)}
	for i, race := range doc {
		track := race.RaceInformation.TrackName
		if track == "" {
			logger.Info("Skipping race without a track name", "race", i)
			continue
		}
		result.races++
		groups, order, skipped := groupLaps(logger.WithValues("track", track), race.LapData)
		result.skipped += skipped
		for _, key := range order {
			result.laps += len(groups[key])
			result.samples.at(track, key.Compound).addGroup(groups[key])
		}
	}
	logger.V(logging.DEBUG).Info("Collected lap data source",
		"races", result.races,
		"laps", result.laps,
		"skippedLaps", result.skipped)
	return result
}

// groupLaps splits the laps of a race by driver and compound. order lists the groups
// in first-appearance order. When any lap of a group lacks a lap number, the whole
// group is numbered by record order instead.
func groupLaps(logger logr.Logger, records []v1alpha1.LapRecord) (map[groupKey][]lap, []groupKey, int) {
	groups := make(map[groupKey][]lap)
	numbered := make(map[groupKey]bool)
	var order []groupKey
	skipped := 0

	for i, rec := range records {
		compound, err := core.ParseCompound(rec.Compound)
		if err != nil {
			logger.V(logging.DEBUG).Info("Skipping lap with an invalid compound", "record", i, "compound", rec.Compound)
			skipped++
			continue
		}
		t, err := rec.NormalizedLapTime.Float64()
		if err == nil && (math.IsNaN(t) || math.IsInf(t, 0)) {
			err = errNonFinite
		}
		if err != nil {
			logger.V(logging.DEBUG).Info("Skipping lap with an unparsable normalized time",
				"record", i, "driver", rec.DriverName, "value", string(rec.NormalizedLapTime), "error", err.Error())
			skipped++
			continue
		}

		key := groupKey{Driver: rec.DriverName, Compound: compound}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			numbered[key] = true
		}
		l := lap{Time: t}
		if rec.LapNumber != nil {
			l.Number = *rec.LapNumber
		} else {
			numbered[key] = false
		}
		groups[key] = append(groups[key], l)
	}

	for key, laps := range groups {
		if numbered[key] {
			continue
		}
		for i := range laps {
			laps[i].Number = float64(i)
		}
	}
	return groups, order, skipped
}
