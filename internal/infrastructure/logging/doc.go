// Package logging provides structured logging for serial2mqtt.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge and the device simulator.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output (logfmt) and coloured console output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Console output by default on a terminal until configuration loads
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge started", "serial", cfg.Serial.URL)
//	logger.Error("failed to connect", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
