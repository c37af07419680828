// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	EnvLevel  = "GEMINI_LOG_LEVEL"
	EnvFormat = "GEMINI_LOG_FORMAT"
)

// Init configures the global logger from the environment.
// GEMINI_LOG_LEVEL is debug, info, warn or error (default info).
// GEMINI_LOG_FORMAT=json writes JSON lines; it is also the default inside
// Lambda, where CloudWatch indexes the fields. Otherwise a console writer is
// used on stderr.
func Init() {
	InitWriter(os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(EnvLevel)))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if useJSON() {
		zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func useJSON() bool {
	switch strings.ToLower(os.Getenv(EnvFormat)) {
	case "json":
		return true
	case "console", "text":
		return false
	}
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
