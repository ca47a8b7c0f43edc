// Package config handles loading and validating udevparse configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (UDEVPARSE_*)
//   - Validation of required fields
//   - Default value handling
//
// Every section has usable defaults, so the CLI runs without a config file.
// MQTT and InfluxDB stay disabled until switched on.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/udevparse.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
