// Package config handles loading and validating the Eclypse bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ECLYPSE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Controller and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Controller.Host, cfg.GetPollInterval())
package config
