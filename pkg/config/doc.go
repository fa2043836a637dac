// Package config provides configuration management for the optimizer commands.
//
// Configuration Sources:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables prefixed with RSO_ (e.g. RSO_WORLD_SIZE, RSO_COLLECTIVE_TIMEOUT)
//  3. An optional YAML or JSON file passed with --config
//  4. Default values (lowest priority)
//
// Example usage:
//
//	v := viper.New()
//	_ = v.BindPFlags(cmd.Flags())
//	cfg, err := config.Load(v, configFile)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// Positional arguments are parsed separately (ParseOptimizeArgs, ParseEstimateArgs)
// because they are required and have no defaults.
package config
