// Package logging provides structured JSON logging for xrloop.
//
// It wraps log/slog. Every line is a JSON object; child loggers carry
// persistent attributes so a line can be traced back to the runtime
// instance, the session and the lifecycle phase that produced it.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(dir, "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sessionLogger := logger.WithInstance(uint64(inst)).WithSession(id)
//	sessionLogger.WithPhase("frame").Warn("view state invalid", "frame", n)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"view state invalid","instance":1,"session_id":"...","phase":"frame","frame":42}
//
// With an empty directory, logs go to stderr. [NopLogger] discards everything
// and is what tests use.
//
// # Log Rotation
//
// [NewLoggerWithRotation] writes through a [RotatingWriter]. Rotated files
// are named xrloop.log.1 (newest) to xrloop.log.N, with a .gz suffix when
// compression is enabled.
//
// # Reading Logs Back
//
// [AggregateLogs] loads the current file and its backups, [FilterLogs]
// narrows them by level, time, session, phase or message, and
// [WriteLogEntries] renders them as text, JSON or CSV. The `xrloop logs`
// command is built on these.
//
// # Configuration
//
//	logging:
//	  enabled: true
//	  level: info
//	  dir: ~/.local/state/xrloop
//	  max_size_mb: 10
//	  max_backups: 3
//	  compress: false
package logging
