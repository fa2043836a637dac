package cli

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collective"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/optimizer"
)

func (a *app) newWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a coordinator and score one partition of its candidates",
		Example: `  race-strategy-optimizer worker --coordinator 10.0.0.5:7470
  race-strategy-optimizer worker --coordinator 10.0.0.5:7470 --rank 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorker(cmd)
		},
	}
	f := cmd.Flags()
	f.String("coordinator", "", "address of the coordinator")
	f.Int("rank", collective.AnyRank, "rank to ask for (negative for the next free rank)")
	addSearchFlags(f)
	return cmd
}

func (a *app) runWorker(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := a.cfg
	if cfg.Coordinator == "" {
		return errors.New("--coordinator is required")
	}

	worker, err := collective.Dial(ctx, cfg.Coordinator, cfg.Rank)
	if err != nil {
		return err
	}
	defer func() {
		_ = worker.Close()
	}()
	logger := logging.FromContext(ctx).WithValues("rank", worker.Rank(), "worldSize", worker.Size())
	ctx = logging.IntoContext(ctx, logger)
	logger.Info("Joined coordinator", "address", cfg.Coordinator)

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return err
	}
	err = optimizer.NewOptimizer(worker, optimizer.Options{
		Parallelism:       cfg.Parallelism,
		Recorder:          recorder,
		CollectiveTimeout: cfg.Collective.Timeout,
	}).Participate(ctx)
	if err != nil {
		return err
	}
	return writeMetrics(cmd, cfg.MetricsFile, registry)
}
