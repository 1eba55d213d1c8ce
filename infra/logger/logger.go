package logger

import corelogger "github.com/kilianp07/busroute/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The output format is detected
// via the APP_ENV variable and the sink follows the last Setup call.
func New(component string) Logger {
	return NewZerologLogger(component)
}
