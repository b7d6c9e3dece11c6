// Package logging provides structured logging for sonoscan.
//
// This package wraps a zap logger. Logging is silent by default so that CLI
// output stays clean; set SONOSCAN_LOG_LEVEL (or pass --log-level) to see what
// the scanner is doing.
//
// # Log Levels
//
//   - Debug: per-address outcomes (unreachable, protocol mismatch, identified)
//   - Info: scan and cache summaries (networks, candidates, speakers found)
//   - Warn: recovered failures (household topology query failed, legacy cache removed)
//   - Error: failures surfaced to the user
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	log := logging.Named("discovery")
//	log.Debug("probe", zap.String("addr", "192.168.1.20"), zap.Bool("open", true))
//
// Components accept a *zap.Logger so tests can pass zaptest loggers.
//
// # Output Format
//
// Logs are written to stderr in zap's console format.
package logging
