// Package log provides a structured logging interface for fastasd inference runs.
//
// The interface is slog-compatible in shape so that callers can plug in their own
// backend; the default backend is zerolog. Inference components obtain a logger with
//
//	logger := log.GetLoggerWithName("inference").With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Iteration completed",
//	    log.IterationKey, it,
//	    log.SqErrKey, sqErr,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached together with its stack trace.
	//
	//	logger.Error("Inference failed", err, log.IterationKey, 12)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
