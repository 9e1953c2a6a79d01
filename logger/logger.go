// Package logger builds the root zerolog logger for the process. Logs are
// structured JSON written to a file so interactive output stays clean;
// development runs can swap in zerolog's console writer instead.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogFile is the log path used when neither config nor flags name one.
const DefaultLogFile = "agentloop.log"

// New builds the root logger. A non-empty path appends JSON logs to that
// file. With an empty path, logs go to stdout, human-readable when pretty is
// set. The level comes from the LOG_LEVEL environment variable and defaults
// to info.
func New(path string, pretty bool) (zerolog.Logger, error) {
	var out io.Writer
	switch {
	case path != "":
		//nolint:gosec // G304: the log path is operator-supplied
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("open log file %s: %w", path, err)
		}
		out = f
	case pretty:
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	default:
		out = os.Stdout
	}

	level := levelFromEnv()
	log := zerolog.New(out).Level(level).With().Timestamp().Logger()

	ev := log.Info().Str("level", level.String())
	if path != "" {
		ev = ev.Str("path", path)
	}
	ev.Msg("logger initialized")
	return log, nil
}

// levelFromEnv parses LOG_LEVEL, accepting zerolog's level names plus the
// common "warning" spelling. Unset or unparseable values mean info.
func levelFromEnv() zerolog.Level {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if raw == "warning" {
		raw = "warn"
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
