// Package logging builds the logrus loggers used across fintrack.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string

	// Format is "text" or "json" (default: text).
	Format string

	// File, when set, sends output to a rotating log file instead of Out.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Out is used when File is empty (default: stderr).
	Out io.Writer
}

// New returns a logger configured from opts.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	case "json":
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return "", filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
			},
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logger.SetOutput(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	case opts.Out != nil:
		logger.SetOutput(opts.Out)
	default:
		logger.SetOutput(os.Stderr)
	}

	return logger, nil
}

// ParseLevel maps a config level name to a logrus level. Empty means info.
func ParseLevel(name string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
