package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/actuator"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collective"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/engines/limiter"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/optimizer"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/config"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

func (a *app) newOptimizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <track> <tolerance> <totalLaps> <startingLapTime>",
		Short: "Run the search as the coordinator and print the optimal strategy",
		Example: `  race-strategy-optimizer optimize "Bahrain Grand Prix" 1 57 96.4 --local-ranks 4
  race-strategy-optimizer optimize Monza 2 53 81.2 --world-size 3 --listen :7470 -o json`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOptimize(cmd, args)
		},
	}
	f := cmd.Flags()
	f.String("rates", config.DefaultRatesPath, "rates document produced by the aggregate command")
	f.Int("world-size", 1, "participants of a distributed run, coordinator included")
	f.String("listen", config.DefaultListen, "address the coordinator serves workers on when world-size is above 1")
	f.Int("local-ranks", 1, "participants to run inside this process")
	f.Int("max-tolerance", config.DefaultMaxTolerance, "largest accepted tolerance (0 disables the check)")
	f.Int("max-candidates", 0, "largest accepted candidate set (0 disables the check)")
	f.StringSlice("compounds", nil, "compound search order (default HARD,MEDIUM,SOFT)")
	f.StringP("output", "o", config.DefaultOutput, "report format: text, json or yaml")
	addSearchFlags(f)
	return cmd
}

func (a *app) runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	in, err := config.ParseOptimizeArgs(args)
	if err != nil {
		return err
	}
	format, err := actuator.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	reporter, err := actuator.NewReporter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}
	model, err := core.LoadTrackModel(cfg.Rates, in.Track)
	if err != nil {
		return err
	}
	compounds, err := cfg.SearchCompounds()
	if err != nil {
		return err
	}
	generator := solver.NewGenerator(compounds...)
	chain, err := limiter.FromConfig(limiter.LimiterConfig{
		MaxTolerance:  cfg.MaxTolerance,
		MaxCandidates: cfg.MaxCandidates,
		Generator:     generator,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return err
	}
	opts := optimizer.Options{
		Generator:         generator,
		Limiter:           chain,
		Parallelism:       cfg.Parallelism,
		Recorder:          recorder,
		CollectiveTimeout: cfg.Collective.Timeout,
	}
	req := optimizer.Request{
		Model:           model,
		TotalLaps:       in.TotalLaps,
		Tolerance:       in.Tolerance,
		StartingLapTime: in.StartingLapTime,
	}

	var result *optimizer.Result
	if cfg.WorldSize > 1 {
		result, err = optimizeDistributed(ctx, cfg, opts, req)
	} else {
		result, err = optimizer.RunLocal(ctx, cfg.LocalRanks, opts, req)
	}
	if err != nil {
		return err
	}

	if err := writeMetrics(cmd, cfg.MetricsFile, registry); err != nil {
		return err
	}
	return reporter.Report(result)
}

func optimizeDistributed(
	ctx context.Context,
	cfg *config.RunConfig,
	opts optimizer.Options,
	req optimizer.Request,
) (*optimizer.Result, error) {
	coordinator, err := collective.NewCoordinator(ctx, cfg.Listen, cfg.WorldSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			logging.FromContext(ctx).Error(err, "Failed to stop the coordinator")
		}
	}()
	logging.FromContext(ctx).Info("Waiting for workers",
		"address", coordinator.Addr(),
		"workers", cfg.WorldSize-1)
	return optimizer.NewOptimizer(coordinator, opts).Optimize(ctx, req)
}

// writeMetrics dumps registry to path, or to the command's error stream when path is "-".
func writeMetrics(cmd *cobra.Command, path string, registry *prometheus.Registry) error {
	switch path {
	case "":
		return nil
	case "-":
		return metrics.Encode(cmd.ErrOrStderr(), registry)
	}
	start := time.Now()
	if err := metrics.WriteTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logging.FromContext(cmd.Context()).V(logging.DEBUG).Info("Metrics written", "path", path, "elapsed", time.Since(start))
	return nil
}
