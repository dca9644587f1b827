package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// restoreGlobals puts the global logger and level back after a test that
// calls Setup.
func restoreGlobals(t *testing.T) {
	t.Helper()
	logger := log.Logger
	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %q, want %q", cfg.Level, LevelInfo)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want JSON output")
	}
	if cfg.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", cfg.Output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelTrace, zerolog.TraceLevel},
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     LogLevel
		logged    []zerolog.Level
		discarded []zerolog.Level
	}{
		{
			level:     LevelDebug,
			logged:    []zerolog.Level{zerolog.DebugLevel, zerolog.WarnLevel},
			discarded: []zerolog.Level{zerolog.TraceLevel},
		},
		{
			level:     LevelWarn,
			logged:    []zerolog.Level{zerolog.WarnLevel, zerolog.ErrorLevel},
			discarded: []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel},
		},
		{
			level:     LevelDisabled,
			discarded: []zerolog.Level{zerolog.ErrorLevel},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			restoreGlobals(t)
			var buf bytes.Buffer
			logger := Setup(Config{Level: tt.level, Output: &buf})

			for _, lvl := range tt.logged {
				buf.Reset()
				logger.WithLevel(lvl).Msg("retry scheduled")
				if !strings.Contains(buf.String(), "retry scheduled") {
					t.Errorf("level %s at %s: message missing", lvl, tt.level)
				}
			}
			for _, lvl := range tt.discarded {
				buf.Reset()
				logger.WithLevel(lvl).Msg("retry scheduled")
				if buf.Len() != 0 {
					t.Errorf("level %s at %s: got %q, want nothing", lvl, tt.level, buf.String())
				}
			}
		})
	}
}

func TestSetup_ServiceField(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	Setup(Config{Level: LevelInfo, Service: "ctgov-mcp", Output: &buf})

	log.Info().Str("endpoint", "/studies").Msg("cache miss")

	out := buf.String()
	for _, want := range []string{`"service":"ctgov-mcp"`, `"endpoint":"/studies"`, `"time":`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestSetup_Pretty(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: &buf})

	logger.Info().Msg("serving MCP over stdio")

	out := buf.String()
	if !strings.Contains(out, "serving MCP over stdio") {
		t.Errorf("output %q missing message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("output %q is JSON, want console format", out)
	}
}

func TestSetup_NilOutputDefaultsToStderr(t *testing.T) {
	restoreGlobals(t)
	// Must not panic without an explicit writer.
	logger := Setup(Config{Level: LevelError})
	logger.Debug().Msg("discarded")
}

func TestNewLogger_UsesGlobalLogger(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	Setup(Config{Level: LevelDebug, Service: "ctgov-mcp", Output: &buf})

	logger := NewLogger(ComponentPagination)
	logger.Debug().Int("pages", 3).Msg("fetch complete")

	out := buf.String()
	for _, want := range []string{`"component":"pagination"`, `"service":"ctgov-mcp"`, `"pages":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	parent := zerolog.New(&buf).With().Str("request_id", "r-1").Logger()

	for _, component := range []string{ComponentClient, ComponentRateLimit, ComponentTools} {
		buf.Reset()
		logger := WithComponent(parent, component)
		logger.Warn().Msg("rate limit store error")

		out := buf.String()
		if !strings.Contains(out, `"component":"`+component+`"`) {
			t.Errorf("output %q missing component %s", out, component)
		}
		if !strings.Contains(out, `"request_id":"r-1"`) {
			t.Errorf("output %q lost parent fields", out)
		}
	}
}
