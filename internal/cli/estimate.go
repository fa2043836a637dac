package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/actuator"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/config"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

func (a *app) newEstimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <startingLapTime> <compound> <laps> <rates> <track>",
		Short: "Estimate the time of a single stint",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := config.ParseEstimateArgs(args)
			if err != nil {
				return err
			}
			model, err := core.LoadTrackModel(in.Rates, in.Track)
			if err != nil {
				return err
			}
			rates, ok := model.Rates(in.Compound)
			if !ok {
				return fmt.Errorf("%w: no %s entry for track %q", core.ErrMissingField, in.Compound, in.Track)
			}
			reporter, err := actuator.NewReporter(cmd.OutOrStdout(), actuator.FormatText)
			if err != nil {
				return err
			}
			return reporter.ReportEstimate(actuator.Estimate{
				Track:       in.Track,
				Compound:    in.Compound,
				Laps:        in.Laps,
				Degradation: rates.AverageDegradation,
				StintTime:   solver.StintTime(in.StartingLapTime, rates.AverageDegradation, in.Laps),
			})
		},
	}
	return cmd
}
