// Package config handles loading and validating SQL gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (SQLGATE_*)
//   - Validation of required fields
//   - Default value handling
//
// The gateway must be runnable from the environment alone, so Load("")
// returns defaults with environment overrides applied.
//
// Security Considerations:
//   - The API key should be set via SQLGATE_API_KEY, not the config file
//   - An empty API key puts the gateway in open mode (no write protection)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
