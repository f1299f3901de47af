// observability/logging.go
package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var level = parseLogLevel(os.Getenv("LOG_LEVEL"))

// SetLevel overrides the level used by loggers created afterwards.
func SetLevel(s string) {
	level = parseLogLevel(s)
}

// NewLogger creates a structured JSON logger for one component.
func NewLogger(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Nop is used by tests and by callers that pass no logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
