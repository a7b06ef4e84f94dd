// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a configured level name.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer
	Pretty bool

	// Output defaults to os.Stderr
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// parseLevel converts LogLevel to zerolog.Level, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request-level detail
//   - Request cache hits, misses and coalesced waits (fingerprint)
//   - Shared Redis cache hits (key)
//   - Unknown LeetCode users in dashboard views
//
// Info: normal operation
//   - Server startup/shutdown
//   - Friends added
//   - Catalog builds
//
// Warn: degraded but serving
//   - LeetCode 429 and the resulting cooldown
//   - Redis errors in the cooldown tracker or shared cache (fail open)
//   - GraphQL errors other than unknown user
//   - Failed difficulty lookups in the activity feed
//
// Error: a request failed
//   - Upstream failures surfaced to a client (after no retry)
//   - Store failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - fingerprint: canonical request key
//   - operation: GraphQL operation name
//   - batch_size, uncached: batch resolution sizes
//   - status: HTTP status code
//   - error_class: upstream error classification
//   - username, company: domain subjects
//   - duration: upstream latency
