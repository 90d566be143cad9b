// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLogLevel converts a level string to a slog.Level.
// Accepted values: debug, info, warn, error (case-insensitive).
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Options selects level and an optional rotating log file.
type Options struct {
	Level string
	// File, when set, receives a copy of every record.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a JSON logger writing to stderr and, when opts.File is set, to
// a size-rotated file. The returned closer releases the file.
func New(stderr io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLogLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      = stderr
		closer io.Closer = nopCloser{}
	)

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100), // MB
			MaxBackups: orDefault(opts.MaxBackups, 10),
			MaxAge:     orDefault(opts.MaxAgeDays, 30), // days
			Compress:   true,
		}
		w = io.MultiWriter(stderr, rotating)
		closer = rotating
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})

	return slog.New(h), closer, nil
}

// Setup installs New(os.Stderr, opts) as the slog default. An invalid level
// falls back to info rather than failing the command.
func Setup(opts Options) (io.Closer, error) {
	if _, err := ParseLogLevel(opts.Level); err != nil {
		opts.Level = "info"
	}

	logger, closer, err := New(os.Stderr, opts)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	return closer, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}

	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
