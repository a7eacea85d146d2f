// Package logging provides structured logging for bpt.
//
// # Overview
//
// Loggers are backed by zap and support:
//
//   - Multiple log levels (debug, info, warn, error)
//   - Console and JSON output formats
//   - Rotating log files through lumberjack
//   - Session IDs that tag every line written while a database is open
//
// # Creating a Logger
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/bpt/bpt.log",
//	})
//
// For testing, use a no-op logger:
//
//	logger := logging.NewNop()
package logging
