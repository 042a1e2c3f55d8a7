// Package logging provides structured logging for the Eclypse bridge.
//
// It wraps log/slog so every component logs with the same handler, level
// and default attributes.
//
// # Features
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("eclypse").Info("poll complete", "request_volume", 42)
//
// Never log controller passwords or Basic tokens. The controller client
// logs the host and user only.
package logging
