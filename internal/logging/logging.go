// Package logging builds the process logger.
//
// Records go to a stream (stderr by default) at the configured level and,
// when a log file is set, also to that file at debug level so the file
// keeps the full history of a run. The file is rotated by size. Level names
// on a text stream are coloured when the stream is a terminal.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the log file.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
)

// Options configures New.
type Options struct {
	Level  string    // debug, info, warn or error
	Format string    // text or json
	File   string    // optional log file, appended to
	Writer io.Writer // stream output; nil means os.Stderr

	// MaxSizeMB is the size at which the log file is rotated.
	// Zero means DefaultMaxSizeMB.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept.
	// Zero means DefaultMaxBackups; negative keeps all of them.
	MaxBackups int
}

// ValidFormats lists the accepted Options.Format values.
var ValidFormats = []string{"text", "json"}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger. The returned closer releases the log file and must
// be called when the logger is no longer used.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	stream, err := newHandler(w, opts.Format, ParseLevel(opts.Level), levelColors(termenv.NewOutput(w).Profile))
	if err != nil {
		return nil, nil, err
	}
	if opts.File == "" {
		return slog.New(stream), nopCloser{}, nil
	}

	path, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	f := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
	}
	if f.MaxSize == 0 {
		f.MaxSize = DefaultMaxSizeMB
	}
	switch {
	case f.MaxBackups == 0:
		f.MaxBackups = DefaultMaxBackups
	case f.MaxBackups < 0:
		f.MaxBackups = 0
	}

	file, err := newHandler(f, opts.Format, slog.LevelDebug, nil)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(fanout{stream, file}), f, nil
}

func newHandler(w io.Writer, format string, level slog.Level, replace func([]string, slog.Attr) slog.Attr) (slog.Handler, error) {
	ho := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		ho.ReplaceAttr = replace
		return slog.NewTextHandler(w, ho), nil
	case "json":
		return slog.NewJSONHandler(w, ho), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be one of %v", format, ValidFormats)
	}
}

// levelColors returns a ReplaceAttr func that colours the level name, or nil
// when the profile has no colours (not a terminal, NO_COLOR set).
func levelColors(p termenv.Profile) func([]string, slog.Attr) slog.Attr {
	if p == termenv.Ascii {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 || a.Key != slog.LevelKey {
			return a
		}
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		var c termenv.Color
		switch {
		case level >= slog.LevelError:
			c = termenv.ANSIRed
		case level >= slog.LevelWarn:
			c = termenv.ANSIYellow
		case level >= slog.LevelInfo:
			c = termenv.ANSIGreen
		default:
			c = termenv.ANSICyan
		}
		return slog.String(a.Key, p.String(level.String()).Foreground(c).String())
	}
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Timer logs the start of a named step and returns a func that logs its
// elapsed time. Use as: defer logging.Timer(logger, "apply")()
func Timer(logger *slog.Logger, name string) func() {
	start := time.Now()
	logger.Debug("step started", "step", name)
	return func() {
		logger.Debug("step finished", "step", name, "elapsed", time.Since(start))
	}
}

// fanout sends every record to all handlers that accept its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
