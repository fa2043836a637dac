package cli

import (
	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collector"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/config"
)

func (a *app) newAggregateCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "aggregate <lapfile>...",
		Short: "Compute the per-track compound rates from historical lap data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := collector.NewAggregator(collector.WithParallelism(a.cfg.Parallelism)).
				Aggregate(ctx, collector.FileSources(args...))
			if err != nil {
				return err
			}
			if err := collector.WriteRatesDocument(out, doc); err != nil {
				return err
			}
			logging.FromContext(ctx).Info("Rates document written", "path", out, "tracks", len(doc))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", config.DefaultRatesPath, "path of the rates document to write")
	cmd.Flags().Int("parallelism", 0, "lap files parsed at once (0 uses GOMAXPROCS)")
	return cmd
}
