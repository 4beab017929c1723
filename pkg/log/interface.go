// Package log provides the structured logging interface used by sparsepce.
//
// The Logger interface is slog-compatible so that the backend can be switched
// without touching callers. Two backends are provided: a zerolog logger
// (NewZerologLogger), which is the default for the basis sequence builder, and
// an adapter over log/slog (NewSlogLogger) that pairs with SetupLogger.
//
// Example usage:
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo).With(
//	    log.ComponentKey, "sparse",
//	    log.PolicyKey, "LeastAngle",
//	)
//	logger.Info("step accepted",
//	    log.StepKey, 3,
//	    log.ActiveSizeKey, 4,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. With returns a child
// logger carrying the given fields on every record.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. An error value passed as a field
	// value is rendered with its message; backends that understand
	// cockroachdb/errors also attach the stack trace.
	//
	// Example:
	//   logger.Error("build failed",
	//       log.ErrAttrKey, err,
	//       log.OperationKey, log.OperationBuild,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Callers use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
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
