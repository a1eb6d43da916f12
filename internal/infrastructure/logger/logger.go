// Package logger configures the process-wide structured logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup builds a zerolog.Logger writing JSON to stdout at the given
// level ("debug"/"info"/"warn"/"error"; unrecognized values fall back
// to info).
func Setup(level string) zerolog.Logger {
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
	return zerolog.New(os.Stdout).Level(l).With().Timestamp().Logger()
}

// Default returns a logger at info level, for callers that haven't
// parsed configuration yet.
func Default() zerolog.Logger {
	return Setup("info")
}
