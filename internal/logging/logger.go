// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/argus-bot/telemetry/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Option customises New.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter replaces stdout as the console sink. Used by tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// New returns a text logger writing to stdout and, when cfg.File is set, to a
// size-rotated file. The returned closer releases the file and is never nil.
func New(cfg config.LogConfig, opts ...Option) (*slog.Logger, io.Closer) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	out := o.writer
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = io.MultiWriter(o.writer, rotator)
		closer = rotator
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}))

	// keep stray stdlib log output in the same sinks
	log.SetOutput(out)

	return logger, closer
}

// ParseLevel maps a config level name onto slog. Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
