// Package zlog adapts zerolog to livehook.Logger.
package zlog

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coregx/livehook"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger writes livehook log entries through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger writing to w at the given level.
// format is FormatJSON or FormatConsole; anything else falls back to JSON.
func New(level, format string, w io.Writer) *Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}

	zl := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Zerolog returns the underlying logger for callers that want structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l *Logger) Info(message string) {
	l.zl.Info().Msg(message)
}

// With returns a child logger carrying key=value on every entry.
func (l *Logger) With(key, value string) livehook.Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Printf lets the logger serve libraries that expect a Printf-style sink.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.zl.Info().Msg(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
