// Package logging configures the zerolog loggers used by the CLI and the server.
package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps debug, info, warn and error to zerolog levels. Anything else is info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a JSON logger writing to w.
func New(level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	lvl := ParseLevel(level)
	ctx := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "pgdot")

	if lvl == zerolog.DebugLevel {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			return fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// NewConsole returns a human readable logger for interactive use.
func NewConsole(level string, w io.Writer, noColor bool) zerolog.Logger {
	return New(level, zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen})
}
