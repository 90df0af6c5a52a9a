// Package logging builds the process logger: charmbracelet/log writing to a
// rotating file, exposed as a *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// File is the log file path. Empty logs to Stderr only.
	File  string
	Level string
	// Debug lowers the level to debug, reports callers and mirrors the
	// file output to Stderr.
	Debug  bool
	Stderr io.Writer
	Prefix string
}

// Logger is the configured logger and the resources behind it.
type Logger struct {
	*slog.Logger
	base   *log.Logger
	closer io.Closer
}

func New(opts Options) (*Logger, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Prefix == "" {
		opts.Prefix = "resolution"
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	var writer io.Writer = opts.Stderr
	var closer io.Closer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		closer = file
		writer = file
		if opts.Debug {
			writer = io.MultiWriter(opts.Stderr, file)
		}
	}

	base := log.NewWithOptions(writer, log.Options{
		ReportCaller:    opts.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          opts.Prefix,
	})
	return &Logger{Logger: slog.New(base), base: base, closer: closer}, nil
}

// ParseLevel maps a config value to a log level; empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

// SetLevel changes the level at runtime, used on config reload.
func (l *Logger) SetLevel(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	l.base.SetLevel(level)
	return nil
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
