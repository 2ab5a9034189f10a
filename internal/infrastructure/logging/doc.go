// Package logging provides structured logging for meshtastic2hass.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// The --log-level flag and M2H_LOG_LEVEL override the level.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.1.0")
//	logger.Info("radio connected", "target", "/dev/ttyUSB0")
//	logger.Error("publish failed", "topic", topic, "error", err)
//
// # Security
//
// Never log broker passwords. config.MQTTAuthConfig redacts itself when
// passed as a log attribute.
package logging
