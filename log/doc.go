// Package log provides a simple, leveled logging interface for the
// dataflow engine and its node library.
//
// It implements a lightweight logging system with support for different
// log levels and customizable output destinations, designed to mirror
// the engine's own structured log events (timestamp, level, node id,
// message) onto whatever the operator has wired as stderr/file/remote
// output.
//
// # Log Levels
//
//   - LogLevelDebug: detailed debugging information for development
//   - LogLevelInfo: general informational messages about normal operation
//   - LogLevelWarn: warning messages for potentially problematic situations
//   - LogLevelError: error messages for failures that need attention
//   - LogLevelNone: disables all logging output
//
// # Logger Interface
//
// The Logger interface provides four main logging methods: Debug, Info,
// Warn, Error.
//
// # Example Usage
//
//	logger := log.NewDefaultLogger(log.LogLevelInfo)
//	logger.Info("engine starting")
//	logger.Debug("resolved config for node %s: %v", nodeID, cfg)
//	logger.Warn("node %s: continue_on_error, skipping", nodeID)
//	logger.Error("node %s failed: %v", nodeID, err)
//
// # golog Integration
//
// For callers who prefer github.com/kataras/golog, GologLogger wraps an
// existing golog.Logger behind the same Logger interface:
//
//	glogger := golog.New()
//	logger := log.NewGologLogger(glogger)
//	logger.Info("engine started")
//	logger.SetLevel(log.LogLevelDebug)
//
// # Thread Safety
//
// DefaultLogger is safe for concurrent use; the underlying stdlib
// log.Logger serializes writes. GologLogger inherits golog's own
// synchronization.
package log
