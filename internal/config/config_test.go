package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  port: 9090
llm:
  provider: anthropic
  anthropic:
    api_key: test-anthropic-key
  openai:
    api_key: test-openai-key
storage:
  driver: memory
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("explicit port lost: %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("host default missing: %q", cfg.Server.Host)
	}
	if cfg.History.Limit != 20 {
		t.Fatalf("history limit default missing: %d", cfg.History.Limit)
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Fatalf("max tokens default missing: %d", cfg.LLM.MaxTokens)
	}
	if cfg.Auth.Expiry != 24*time.Hour {
		t.Fatalf("auth expiry default missing: %v", cfg.Auth.Expiry)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(validYAML + "\nsurprise: true\n"))
	if err == nil {
		t.Fatalf("unknown top-level field must be rejected")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing anthropic key",
			yaml: "llm:\n  provider: anthropic\n  openai:\n    api_key: k\n",
			want: "anthropic.api_key",
		},
		{
			name: "missing openai key for classifier",
			yaml: "llm:\n  provider: anthropic\n  anthropic:\n    api_key: k\n",
			want: "openai.api_key",
		},
		{
			name: "unknown provider",
			yaml: "llm:\n  provider: homebrew\n",
			want: "llm.provider",
		},
		{
			name: "sqlite without path",
			yaml: validYAML + "\n",
			want: "storage.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := tt.yaml
			if tt.name == "sqlite without path" {
				yaml = strings.Replace(validYAML, "driver: memory", "driver: sqlite", 1)
			}
			_, err := Parse([]byte(yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_COACH_KEY", "expanded-key")

	path := t.TempDir() + "/coach.yaml"
	yaml := strings.Replace(validYAML, "test-anthropic-key", "${TEST_COACH_KEY}", 1)
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Anthropic.APIKey != "expanded-key" {
		t.Fatalf("env not expanded: %q", cfg.LLM.Anthropic.APIKey)
	}
}
