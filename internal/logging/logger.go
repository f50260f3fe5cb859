package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a level name to a Level. Unknown names map to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Logger is a ContextLogger backed by logrus. Loggers derived with
// WithField or WithContext share the underlying output and level.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger returns a logger writing to w with the given formatter.
func NewLogger(w io.Writer, formatter logrus.Formatter, level string) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(formatter)
	base.SetLevel(ParseLevel(level).logrus())
	return &Logger{entry: logrus.NewEntry(base)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return NewLogger(io.Discard, &logrus.TextFormatter{}, "error")
}

// WithContext returns a logger with correlation and request IDs from context.
func (l *Logger) WithContext(ctx context.Context) ContextLogger {
	fields := logrus.Fields{}
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		fields["correlation_id"] = correlationID
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		fields["request_id"] = requestID
	}
	return &Logger{entry: l.entry.WithFields(fields)}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) ContextLogger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) ContextLogger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// splitArgs formats message with as many leading args as it has verbs and
// turns the rest into key-value fields. A trailing odd arg becomes "extra".
func splitArgs(message string, args []interface{}) (string, logrus.Fields) {
	if len(args) == 0 {
		return message, nil
	}

	verbCount := 0
	for i := 0; i < len(message)-1; i++ {
		if message[i] != '%' {
			continue
		}
		if message[i+1] == '%' {
			i++
			continue
		}
		verbCount++
	}

	rest := args
	if verbCount > 0 && len(args) >= verbCount {
		message = fmt.Sprintf(message, args[:verbCount]...)
		rest = args[verbCount:]
	}
	if len(rest) == 0 {
		return message, nil
	}

	fields := make(logrus.Fields, len(rest)/2+1)
	for i := 0; i < len(rest)-1; i += 2 {
		if key, ok := rest[i].(string); ok {
			fields[key] = rest[i+1]
		}
	}
	if len(rest)%2 == 1 {
		fields["extra"] = rest[len(rest)-1]
	}
	return message, fields
}

func (l *Logger) log(level logrus.Level, message string, args []interface{}) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	msg, fields := splitArgs(message, args)
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(logrus.DebugLevel, message, args)
}

// Info logs an info message.
func (l *Logger) Info(message string, args ...interface{}) {
	l.log(logrus.InfoLevel, message, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(logrus.WarnLevel, message, args)
}

// Error logs an error message.
func (l *Logger) Error(message string, args ...interface{}) {
	l.log(logrus.ErrorLevel, message, args)
}

// Fatal logs an error message and exits.
func (l *Logger) Fatal(message string, args ...interface{}) {
	l.log(logrus.ErrorLevel, message, args)
	os.Exit(1)
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.entry.Logger.SetLevel(level.logrus())
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() Level {
	return fromLogrus(l.entry.Logger.GetLevel())
}
