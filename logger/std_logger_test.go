package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

// captureLogOutput captures log output for testing
func captureLogOutput(fn func()) string {
	var buf bytes.Buffer

	// Save original logger settings
	originalOutput := log.Writer()
	originalFlags := log.Flags()

	// Set up capture
	log.SetOutput(&buf)
	log.SetFlags(0) // Remove timestamp for consistent testing

	// Restore original settings after test
	defer func() {
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	}()

	fn()
	return buf.String()
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLogLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewStdLogger(t *testing.T) {
	logger := NewStdLogger("warn").(*StdLogger)
	if logger.minLevel != LevelWarn {
		t.Errorf("NewStdLogger(%q).minLevel = %v, want %v", "warn", logger.minLevel, LevelWarn)
	}
	if logger.context == nil {
		t.Error("NewStdLogger should initialize context map")
	}
	if len(logger.context) != 0 {
		t.Error("NewStdLogger should initialize empty context map")
	}
}

func TestStdLogger_LogLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  string
		logFunc   func(Logger)
		expected  string
		shouldLog bool
	}{
		{
			name:      "debug message with debug level",
			minLevel:  "debug",
			logFunc:   func(l Logger) { l.Debugw("test debug message") },
			expected:  "[DEBUG] test debug message",
			shouldLog: true,
		},
		{
			name:      "debug message filtered by info level",
			minLevel:  "info",
			logFunc:   func(l Logger) { l.Debugw("test debug message") },
			expected:  "",
			shouldLog: false,
		},
		{
			name:      "warn message with info level",
			minLevel:  "info",
			logFunc:   func(l Logger) { l.Warnw("test warn message") },
			expected:  "[WARN] test warn message",
			shouldLog: true,
		},
		{
			name:      "error message with error level",
			minLevel:  "error",
			logFunc:   func(l Logger) { l.Errorw("test error message") },
			expected:  "[ERROR] test error message",
			shouldLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(func() {
				tt.logFunc(NewStdLogger(tt.minLevel))
			})
			if tt.shouldLog && !strings.Contains(output, tt.expected) {
				t.Errorf("expected output to contain %q, got %q", tt.expected, output)
			}
			if !tt.shouldLog && output != "" {
				t.Errorf("expected no output, got %q", output)
			}
		})
	}
}

func TestStdLogger_StructuredFields(t *testing.T) {
	output := captureLogOutput(func() {
		NewStdLogger("info").Infow("locked", "resource", "res-1", "scope", "exclusive")
	})
	for _, want := range []string{"[INFO] locked", "resource=res-1", "scope=exclusive"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
}

func TestStdLogger_ContextEnrichment(t *testing.T) {
	base := NewStdLogger("info")
	enriched := base.WithComponent("registry").WithResource("res-7").With("extra", 42)

	output := captureLogOutput(func() {
		enriched.Infow("registered")
	})
	for _, want := range []string{"component=registry", "resource=res-7", "extra=42"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}

	// The base logger must not pick up the enriched context.
	output = captureLogOutput(func() {
		base.Infow("plain")
	})
	if strings.Contains(output, "component=") {
		t.Errorf("base logger context leaked: %q", output)
	}
}

func TestStdLogger_MalformedKeyValues(t *testing.T) {
	output := captureLogOutput(func() {
		// Odd trailing value and a non-string key are both skipped.
		NewStdLogger("info").Infow("msg", "key1", "val1", 42, "ignored", "dangling")
	})
	if !strings.Contains(output, "key1=val1") {
		t.Errorf("expected well-formed pair to be logged, got %q", output)
	}
	if strings.Contains(output, "ignored") || strings.Contains(output, "dangling") {
		t.Errorf("expected malformed pairs to be skipped, got %q", output)
	}
}
