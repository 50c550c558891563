// Package config handles loading and validating the ComfortClick bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The panel password and MQTT credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Panel.Host)
//
// Device identifiers (fans, locks, thermostats, utilities, ventilation) live in a
// separate file referenced by panel.devices_file and are loaded by the devices package.
package config
