// Package config handles loading and validating meshtastic2hass configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Overriding with command-line flags (via Override functions)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords should be set via M2H_MQTT_PASSWORD rather than the file
//   - The config file should have restricted permissions (0600)
//   - MQTTAuthConfig redacts the password when printed or marshalled
//
// Usage:
//
//	cfg, err := config.Load("/etc/meshtastic2hass/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.TopicPrefix)
//
// An empty path skips the file and yields defaults plus overrides, which is
// how the CLI runs when only flags are given.
package config
