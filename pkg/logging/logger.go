// Package logging configures zerolog for the registry client and its
// command-line tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelTrace    LogLevel = "trace"
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelDisabled LogLevel = "disabled"
)

// Component names attached to log entries as the "component" field.
const (
	ComponentClient     = "client"
	ComponentCache      = "cache"
	ComponentRateLimit  = "ratelimit"
	ComponentPagination = "pagination"
	ComponentTools      = "tools"
	ComponentServer     = "server"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown values mean info.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Service, when set, is attached to every entry as "service".
	Service string

	// Output defaults to os.Stderr. Stdout carries the MCP protocol when
	// serving over stdio and must stay free of log lines.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level.
func ParseLevel(level LogLevel) zerolog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled, "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a component logger from the global logger.
func NewLogger(component string) zerolog.Logger {
	return WithComponent(log.Logger, component)
}

// WithComponent derives a logger tagged with component from parent.
func WithComponent(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}

// Log levels in use:
//
// Debug: cache hit/miss/store, each request attempt, HTTP session
// open/close, page fetches, shared in-flight requests.
//
// Info: requests that succeeded after a retry, rate limit recovery, cache
// clears, server start and shutdown, batch fetch totals.
//
// Warn: 429 cooldowns, retries with their backoff, rate limit store errors
// (the request still proceeds), failed lookups inside a batch fetch,
// unavailable statistics.
//
// Error: requests that failed after the last attempt.
//
// Fields: request_id, endpoint, category, attempt, status_code,
// error_class, backoff, hits, ttl, nct_id, worker_id.
