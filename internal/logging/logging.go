// Package logging builds the zerolog.Logger used across ociregistry, wired
// to the text/json and level choices resolved by internal/config.
package logging

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/ociregistry/ociregistry/internal/config"
)

// New builds a zerolog.Logger for the given level/format pair, writing to
// stderr so stdout stays free for command output (archive paths, tag
// lists, inspect JSON).
func New(level, format string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))

	if format == config.LogFormatJSON {
		return zerolog.New(os.Stderr).Level(parseLevel(level)).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarn:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a Logger from ctx, falling back to a disabled
// logger so callers never need a nil check.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}
