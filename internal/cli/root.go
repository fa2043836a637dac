// Package cli implements the command line of the race strategy optimizer.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/config"
)

// flag names that map onto nested configuration keys
var nestedKeys = map[string]string{
	"verbosity":          "log.verbosity",
	"dev-log":            "log.development",
	"collective-timeout": "collective.timeout",
}

// app carries the configuration loaded before a subcommand runs.
type app struct {
	cfg *config.RunConfig
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "race-strategy-optimizer",
		Short: "Search the fastest tyre strategy for a race",
		Long: `race-strategy-optimizer enumerates pit-stop strategies from per-track tyre statistics,
scores them across a group of participants and reports the fastest one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "optional YAML or JSON configuration file")
	pf.CountP("verbosity", "v", "log verbosity (-v debug, -vv trace)")
	pf.Bool("dev-log", false, "human-readable development logging")

	root.AddCommand(
		a.newOptimizeCommand(),
		a.newWorkerCommand(),
		a.newAggregateCommand(),
		a.newEstimateCommand(),
	)
	return root
}

// load reads and validates the configuration of cmd, then installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := nestedKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	configFile, err := flags.GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Verbosity, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logging.SetLogger(logger)
	cmd.SetContext(logging.IntoContext(cmd.Context(), logger.WithName(cmd.Name())))
	a.cfg = cfg
	return nil
}

// addSearchFlags registers the flags shared by the participants of a search.
func addSearchFlags(f *pflag.FlagSet) {
	f.Int("parallelism", 0, "scoring goroutines per participant (0 uses GOMAXPROCS)")
	f.Duration("collective-timeout", 0, "bound on each broadcast and gather (0 waits forever)")
	f.String("metrics-file", "", "write the run's metrics in the Prometheus text format to this file (- for stderr)")
}
