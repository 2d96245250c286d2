// Package logging provides structured logging for the WeatherBird provisioning daemon.
//
// This package wraps a zap logger with package-level convenience functions so that
// the state machine, the radio controller and the HTTP surface all log through the
// same sink without passing a logger around.
//
// # Log Levels
//
//   - Debug: record hex dumps, radio command output, per-round association attempts
//   - Info: state transitions, HTTP requests, mode switches
//   - Warn: recoverable storage or radio failures
//   - Error: failures surfaced to the operator (claim errors, server startup)
//
// # Structured Logging
//
//	logging.Info("Access point started",
//	    zap.String("ssid", "WEATHERBIRD1a2b3c4d"),
//	    zap.Int("channel", 6),
//	)
//
// Secrets must never be logged verbatim; use Redact:
//
//	logging.Debug("Joining network", zap.String("password", logging.Redact(pw)))
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, WEATHERBIRD_LOG_LEVEL is consulted; when that is empty
// too, logging is silent.
package logging
