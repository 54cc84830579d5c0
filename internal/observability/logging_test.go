package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info(context.Background(), "route call", "agent_kind", "workout", "forced", false)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "route call" {
		t.Fatalf("msg lost: %v", record)
	}
	if record["agent_kind"] != "workout" {
		t.Fatalf("attribute lost: %v", record)
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, UserIDKey, "u1")
	logger.Info(ctx, "hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["request_id"] != "req-42" || record["user_id"] != "u1" {
		t.Fatalf("context fields missing: %v", record)
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	key := "sk-" + strings.Repeat("a", 48)
	logger.Error(context.Background(), "provider failed", "detail", "request with api_key: "+key)

	out := buf.String()
	if strings.Contains(out, key) {
		t.Fatalf("api key leaked into log output:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("redaction marker missing:\n%s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Debug(context.Background(), "noise")
	logger.Info(context.Background(), "still noise")
	if buf.Len() != 0 {
		t.Fatalf("below-threshold levels should be dropped:\n%s", buf.String())
	}

	logger.Warn(context.Background(), "kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn level should pass:\n%s", buf.String())
	}
}
