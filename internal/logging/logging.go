// Package logging builds the structured logger used across volxfer.
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// New creates a console logger writing to w. Debug enables debug level;
// otherwise only warnings and errors are written so that the user-facing
// output stays readable.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
