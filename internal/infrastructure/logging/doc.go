// Package logging provides structured logging for udevparse.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service and CLI.
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
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("ingest complete", "devices", 42)
//	logger.Error("failed to connect", "error", err)
//
// Parsed identifier values are not secret, but MQTT and InfluxDB credentials
// are; never log them.
package logging
