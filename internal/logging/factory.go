package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// FormatText is the human readable key=value format.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON format.
	FormatJSON LogFormat = "json"
)

// Config represents logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	// File, when set, receives a copy of every entry.
	File string
}

// NewLoggerFromConfig creates a logger based on configuration. The returned
// closer is non-nil when a log file was opened.
func NewLoggerFromConfig(cfg *Config) (ContextLogger, io.Closer) {
	format := cfg.Format
	if format == "" {
		if envFormat := os.Getenv("SGFRENDER_LOG_FORMAT"); envFormat != "" {
			format = LogFormat(strings.ToLower(envFormat))
		} else {
			format = FormatJSON
		}
	}

	var formatter logrus.Formatter
	switch format {
	case FormatText:
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339}
	default:
		formatter = &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}
	}

	var writer io.Writer = os.Stderr
	var file *os.File
	if cfg.File != "" {
		f, err := openLogFile(cfg.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.File, err)
		} else {
			file = f
			writer = io.MultiWriter(os.Stderr, f)
		}
	}

	logger := NewLogger(writer, formatter, cfg.Level)
	var withService ContextLogger = logger
	if cfg.Service != "" {
		fields := map[string]interface{}{"service": cfg.Service}
		if cfg.Version != "" {
			fields["version"] = cfg.Version
		}
		withService = logger.WithFields(fields)
	}

	if file != nil {
		return withService, file
	}
	return withService, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
