// Package logging provides structured logging for the ComfortClick bridge.
//
// It wraps log/slog so every component logs with the same shape:
// JSON by default, text for local development, with service and version
// attached to every record.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the panel password, the MQTT password or the panel session token.
package logging
