// Package logging provides structured logging for devicesim.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the simulator.
//
// # Features
//
//   - Text output for interactive runs (default)
//   - JSON output for log shipping
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connected", "broker", "localhost:1883")
//	logger.Warn("publish failed", "topic", topic, "error", err)
package logging
