// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tour-booking/internal/config"
)

// New returns a logger writing human readable lines in development and JSON
// in production.
func New(env string) zerolog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) zerolog.Logger {
	level := zerolog.DebugLevel
	if env == config.EnvProduction {
		level = zerolog.InfoLevel
	} else {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("env", env).Logger()
}
