// Package config handles loading and validating the SIP MQTT bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials should be set via environment variables or .env
//   - The config file should have restricted permissions (0600)
//
// Broker host, port, keepalive and status topic in this file are first-run
// defaults. After the first start they live in the settings store and are
// edited there.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.ClientID())
package config
