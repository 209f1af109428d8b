package watari

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger defines a standard interface for logging. The library is silent
// by default; pass a logger with [WithLogger] to see what it is doing.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// ZerologLogger adapts a zerolog.Logger to the [Logger] interface.
type ZerologLogger struct {
	zerolog.Logger
}

// NewLogger creates a JSON logger on stdout at the given level ("debug",
// "info", "warn", "error").
func NewLogger(level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	return &ZerologLogger{l}
}

// WrapLogger adapts an existing zerolog.Logger.
func WrapLogger(l zerolog.Logger) Logger {
	return &ZerologLogger{l}
}

// Debugf logs a message at the debug level.
func (l *ZerologLogger) Debugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}

// Infof logs a message at the info level.
func (l *ZerologLogger) Infof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

// Warnf logs a message at the warn level.
func (l *ZerologLogger) Warnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

// Errorf logs a message at the error level.
func (l *ZerologLogger) Errorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
