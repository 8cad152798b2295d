package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"disabled", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("k", "v").Msg("test message")

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Errorf("expected output to contain message, got: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected level and field in output, got: %s", out)
	}
}

func TestCtxAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	Ctx(ctx).Info().Msg("handled")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id: %s", out)
	}
	if !strings.Contains(out, `"correlation_id":"corr-1"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
}

func TestContextIDsEmptyByDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || CorrelationIDFromContext(ctx) != "" {
		t.Fatal("expected empty IDs on a bare context")
	}
	if id := GenerateCorrelationID(); len(id) != 8 {
		t.Fatalf("GenerateCorrelationID length = %d, want 8", len(id))
	}
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := NewSlogLogger(NewTestLogger(&buf))
	logger.WithGroup("svc").Warn("service restarted", slog.String("name", "http-server"), slog.Int("attempt", 2))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"svc.name":"http-server"`, `"svc.attempt":2`, "service restarted"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}
