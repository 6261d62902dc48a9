// Package config handles loading and validating devicesim configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The resolved Config is read once at startup and never mutated afterwards.
// Command-line flags are applied by cmd/devicesim between Load and Validate.
//
// Usage:
//
//	cfg, err := config.Load("configs/devicesim.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(simulator.BuiltinProfiles()); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.BrokerAddress())
package config
