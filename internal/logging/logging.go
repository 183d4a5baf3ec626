// Package logging builds the zerolog loggers used across asynchttp.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and sinks of a logger.
type Config struct {
	Level      string // debug, info, warn, error (default: info)
	File       string // rotating log file, disabled when empty
	MaxSizeMB  int    // rotate after this many megabytes (default: 10)
	MaxBackups int    // rotated files to keep (default: 3)
	MaxAgeDays int    // days to keep rotated files (default: 28)
}

func (c *Config) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 28
	}
}

// New builds a logger writing human-readable lines to console (when non-nil)
// and JSON lines to the rotating file (when configured). The returned closer
// releases the file.
func New(cfg Config, console io.Writer) (zerolog.Logger, io.Closer, error) {
	cfg.setDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, file)
		closer = file
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// FuncWriter delivers each log line, without its trailing newline, to a
// string callback.
type FuncWriter func(msg string)

func (f FuncWriter) Write(p []byte) (int, error) {
	f(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewFuncLogger returns a JSON logger that hands every line to fn.
func NewFuncLogger(fn func(msg string)) zerolog.Logger {
	return zerolog.New(FuncWriter(fn)).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
