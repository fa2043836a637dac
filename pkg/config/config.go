package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "RSO"

// Defaults
const (
	DefaultRatesPath    = "data/output/rates.json"
	DefaultListen       = ":7470"
	DefaultOutput       = "text"
	DefaultMaxTolerance = 5
)

// RunConfig holds every setting of the optimizer commands.
type RunConfig struct {
	// Rates is the path of the rates document.
	Rates string `mapstructure:"rates"`

	// WorldSize is the number of participants of a distributed run, coordinator included.
	// Above one the coordinator serves on Listen and waits for WorldSize-1 workers.
	WorldSize int    `mapstructure:"world-size"`
	Listen    string `mapstructure:"listen"`

	// LocalRanks runs that many participants inside the coordinator process instead.
	LocalRanks int `mapstructure:"local-ranks"`

	// Parallelism bounds the scoring goroutines of each participant. Zero uses GOMAXPROCS.
	Parallelism int `mapstructure:"parallelism"`

	// MaxTolerance and MaxCandidates bound the search; zero disables a bound.
	MaxTolerance  int `mapstructure:"max-tolerance"`
	MaxCandidates int `mapstructure:"max-candidates"`

	// Compounds is the search order of the generator.
	Compounds []string `mapstructure:"compounds"`

	// Output is the report format: text, json or yaml.
	Output string `mapstructure:"output"`

	// MetricsFile receives the run's metrics in the Prometheus text format when set.
	MetricsFile string `mapstructure:"metrics-file"`

	// Coordinator is the address a worker dials, and Rank the rank it asks for
	// (negative for any free rank).
	Coordinator string `mapstructure:"coordinator"`
	Rank        int    `mapstructure:"rank"`

	Collective CollectiveConfig `mapstructure:"collective"`
	Log        LogConfig        `mapstructure:"log"`
}

// CollectiveConfig tunes the broadcast and gather operations.
type CollectiveConfig struct {
	// Timeout bounds each collective operation. Zero waits forever.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig tunes the logger.
type LogConfig struct {
	Verbosity   int  `mapstructure:"verbosity"`
	Development bool `mapstructure:"development"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("rates", DefaultRatesPath)
	v.SetDefault("world-size", 1)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("local-ranks", 1)
	v.SetDefault("parallelism", 0)
	v.SetDefault("max-tolerance", DefaultMaxTolerance)
	v.SetDefault("max-candidates", 0)
	v.SetDefault("compounds", []string{string(core.Hard), string(core.Medium), string(core.Soft)})
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("metrics-file", "")
	v.SetDefault("coordinator", "")
	v.SetDefault("rank", -1)
	v.SetDefault("collective.timeout", time.Duration(0))
	v.SetDefault("log.verbosity", 0)
	v.SetDefault("log.development", false)
}

// Load reads the configuration from v, the environment and configFile, when given.
// Flags must already be bound to v.
func Load(v *viper.Viper, configFile string) (*RunConfig, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &RunConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	return cfg, nil
}

// SearchCompounds parses the configured search order.
func (c *RunConfig) SearchCompounds() ([]core.Compound, error) {
	out := make([]core.Compound, 0, len(c.Compounds))
	for _, label := range c.Compounds {
		compound, err := core.ParseCompound(label)
		if err != nil {
			return nil, err
		}
		out = append(out, compound)
	}
	return out, nil
}

// Validate checks for invalid configuration values.
func (c *RunConfig) Validate() error {
	var errs []error
	if c.WorldSize < 1 {
		errs = append(errs, fmt.Errorf("world-size must be >= 1, got %d", c.WorldSize))
	}
	if c.LocalRanks < 1 {
		errs = append(errs, fmt.Errorf("local-ranks must be >= 1, got %d", c.LocalRanks))
	}
	if c.WorldSize > 1 && c.LocalRanks > 1 {
		errs = append(errs, fmt.Errorf("world-size (%d) and local-ranks (%d) cannot both be above 1",
			c.WorldSize, c.LocalRanks))
	}
	if c.WorldSize > 1 && c.Listen == "" {
		errs = append(errs, errors.New("listen address is required when world-size is above 1"))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must be >= 0, got %d", c.Parallelism))
	}
	if c.MaxTolerance < 0 {
		errs = append(errs, fmt.Errorf("max-tolerance must be >= 0, got %d", c.MaxTolerance))
	}
	if c.MaxCandidates < 0 {
		errs = append(errs, fmt.Errorf("max-candidates must be >= 0, got %d", c.MaxCandidates))
	}
	if c.Collective.Timeout < 0 {
		errs = append(errs, fmt.Errorf("collective.timeout must be >= 0, got %s", c.Collective.Timeout))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must be >= 0, got %d", c.Log.Verbosity))
	}
	switch strings.ToLower(c.Output) {
	case "text", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output must be text, json or yaml, got %q", c.Output))
	}
	if _, err := c.SearchCompounds(); err != nil {
		errs = append(errs, fmt.Errorf("compounds: %w", err))
	}
	return errors.Join(errs...)
}
