package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"concierge/pkg/config"
)

func TestLoggerJSONEntryShape(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "pipeline").Info("Replied", "namespace", "hotel-aurora", "context_chunks", 3)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}

	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "Replied" {
		t.Fatalf("message = %v, want Replied", entry["message"])
	}
	if entry["component"] != "pipeline" {
		t.Fatalf("component = %v, want pipeline", entry["component"])
	}
	if entry["timestamp"] == nil {
		t.Fatal("expected timestamp key")
	}
	if entry["namespace"] != "hotel-aurora" {
		t.Fatalf("namespace = %v, want hotel-aurora", entry["namespace"])
	}
}

func TestLoggerMasksSenderIDs(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Received message", "sender_id", "15551234567")
	log.With("sender_id", "15559876543").Info("Replied")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}
	if first["sender_id"] != "*******4567" {
		t.Fatalf("sender_id = %v, want *******4567", first["sender_id"])
	}

	if strings.Contains(lines[1], "15559876543") {
		t.Fatalf("expected attached sender_id to be masked, got %q", lines[1])
	}
	if !strings.Contains(lines[1], "6543") {
		t.Fatalf("expected masked suffix in %q", lines[1])
	}
}

func TestMaskSenderID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "15551234567", want: "*******4567"},
		{input: "4567", want: "****"},
		{input: "42", want: "**"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		if got := MaskSenderID(tt.input); got != tt.want {
			t.Fatalf("MaskSenderID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Ignored")
	if got := strings.TrimSpace(out.String()); got != "" {
		t.Fatalf("expected no output for info, got %q", got)
	}

	log.Error("Kept")
	if got := strings.TrimSpace(out.String()); got == "" {
		t.Fatal("expected output for error")
	}
}

func TestLoggerEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONCIERGE_LOG_LEVEL", "debug")
	t.Setenv("CONCIERGE_LOG_FORMAT", "text")
	defer unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Debug("Debug enabled")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected debug output with env override")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format override, got %q", line)
	}
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format by default, got %q", line)
	}
}

func TestLoggerRejectsUnknownFormat(t *testing.T) {
	unsetLoggingEnv(t)

	if _, err := newWithWriter(config.LoggingConfig{Format: "logfmt"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func unsetLoggingEnv(t *testing.T) {
	t.Helper()
	_ = os.Unsetenv("CONCIERGE_LOG_LEVEL")
	_ = os.Unsetenv("CONCIERGE_LOG_FORMAT")
	_ = os.Unsetenv("CONCIERGE_LOG_ADD_SOURCE")
}
