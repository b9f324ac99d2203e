package tracker

import "log/slog"

// Logger accepts leveled messages with slog-style key/value args.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var discardLogger Logger = slog.New(slog.DiscardHandler)
