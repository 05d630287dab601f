// Package logging provides structured logging for cloudbridge.
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("polling devices", "interval", cfg.GetPollInterval())
//
// # Security
//
// Never log the cloud API key. Use MaskSecret when a hint is needed:
//
//	logger.Info("using api key", "key_prefix", logging.MaskSecret(key))
package logging
