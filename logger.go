package livehook

// Logger defines the logging interface used across livehook.
// adapters/zlog provides a zerolog implementation; tests usually pass NoopLogger.
type Logger interface {
	// Debugf logs debug-level messages with printf-style formatting.
	Debugf(format string, args ...interface{})

	// Infof logs info-level messages with printf-style formatting.
	Infof(format string, args ...interface{})

	// Warnf logs warning-level messages with printf-style formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs error-level messages with printf-style formatting.
	Errorf(format string, args ...interface{})

	// Info logs info-level messages without formatting.
	Info(message string)

	// With returns a logger that attaches key=value to every entry.
	With(key, value string) Logger
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}
func (l *NoopLogger) Infof(_ string, _ ...interface{})  {}
func (l *NoopLogger) Warnf(_ string, _ ...interface{})  {}
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}
func (l *NoopLogger) Info(_ string)                     {}

// With returns the receiver.
func (l *NoopLogger) With(_, _ string) Logger { return l }
