// Package config handles loading and validating service desk core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SERVICEDESK_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Token secrets have no defaults; the process refuses to start without both
//   - The access and refresh secrets must differ
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	ttl := cfg.Security.AccessToken.TTLDuration()
package config
