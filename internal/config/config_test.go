package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("LW_TEST_KEY", "sk-live-123")

	path := writeConfig(t, `{
		"server": {"port": 9090, "log_level": "debug"},
		"providers": [{
			"id": "main",
			"type": "openai",
			"endpoint": "${LW_TEST_ENDPOINT:https://api.openai.com/v1}",
			"api_key": "${LW_TEST_KEY}",
			"model": "gpt-4o-mini"
		}],
		"events": {"enabled": true, "redis_url": "${LW_TEST_REDIS:redis://localhost:6379}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if got := cfg.Providers[0].APIKey; got != "sk-live-123" {
		t.Errorf("api_key = %q, env var not substituted", got)
	}
	if got := cfg.Providers[0].Endpoint; got != "https://api.openai.com/v1" {
		t.Errorf("endpoint = %q, default not applied", got)
	}
	if got := cfg.Events.RedisURL; got != "redis://localhost:6379" {
		t.Errorf("redis_url = %q", got)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("LW_TEST_PORT_EP", "http://localhost:11434/v1")

	path := writeConfig(t, `{
		"providers": [{"id": "local", "endpoint": "${LW_TEST_PORT_EP:https://fallback}"}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Providers[0].Endpoint; got != "http://localhost:11434/v1" {
		t.Errorf("endpoint = %q, env should win over default", got)
	}
}

func TestLoadDefaultPort(t *testing.T) {
	path := writeConfig(t, `{"game": {"model": "gpt-4o"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Game.Temperature != nil {
		t.Error("absent temperature must stay nil so session defaults apply")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed json")
	}
}
