// Package logging builds the JSON loggers the Lambdas write to CloudWatch.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Field names shared by both handlers.
const (
	FieldTarget  = "target"
	FieldPolicy  = "policy"
	FieldOutcome = "outcome"
	FieldCode    = "code"
)

// New returns a logger writing one JSON object per line to w. Unknown or
// empty levels fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
