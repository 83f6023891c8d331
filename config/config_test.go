package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `{
  "server": {"address": ":9999", "run_timeout": "90s"},
  "llm": {"api_key": "sk-test", "max_tokens": 1024},
  "search": {"api_key": "cse-key", "engine_id": "cse-id", "cache_ttl": "30m"},
  "scrape": {"enabled": true},
  "storage": {
    "postgres": {"host": "db", "dbname": "leads", "user": "u", "password": "p"},
    "redis": {"host": "cache"},
    "file": {"data_dir": "out"}
  },
  "telemetry": {"enabled": true},
  "retention": {"days": 14}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesFileAndDefaults(t *testing.T) {
	cfg := LoadConfig(writeConfig(t, sampleConfig))

	if cfg.Server.Address != ":9999" {
		t.Fatalf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Server.RunTimeout != 90*time.Second {
		t.Fatalf("server.run_timeout = %v", cfg.Server.RunTimeout)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("llm defaults not applied: %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Fatalf("llm.temperature = %v, want default 0.7", cfg.LLM.Temperature)
	}
	if cfg.Search.MaxResults != 5 || cfg.Search.CacheTTL != 30*time.Minute {
		t.Fatalf("unexpected search config: %+v", cfg.Search)
	}
	if !cfg.Scrape.Enabled || cfg.Scrape.MaxChars != 50000 {
		t.Fatalf("unexpected scrape config: %+v", cfg.Scrape)
	}
	if cfg.Retention.Days != 14 || cfg.Retention.Schedule != "0 3 * * *" {
		t.Fatalf("unexpected retention config: %+v", cfg.Retention)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LEADSCOUT_LLM_MODEL", "gpt-4o")

	cfg := LoadConfig(writeConfig(t, sampleConfig))
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("llm.model = %q, want env override gpt-4o", cfg.LLM.Model)
	}
}

func TestLoadConfigPanicsOnMissingSearchCredentials(t *testing.T) {
	body := `{
  "llm": {"api_key": "sk-test"},
  "search": {"api_key": "cse-key"}
}`
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing search.engine_id")
		}
	}()
	LoadConfig(writeConfig(t, body))
}

func TestSearchConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     SearchConfig
		wantErr bool
	}{
		{"ok", SearchConfig{APIKey: "k", EngineID: "cx"}, false},
		{"missing key", SearchConfig{EngineID: "cx"}, true},
		{"missing engine", SearchConfig{APIKey: "k"}, true},
		{"blank key", SearchConfig{APIKey: "  ", EngineID: "cx"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestPostgresConfigDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "leads"}
	want := "postgres://u:p@db:5432/leads?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}

	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Fatalf("DSN() = %q, want explicit url", got)
	}

	if err := (PostgresConfig{Host: "db"}).Validate(); err == nil {
		t.Fatal("expected error for missing dbname")
	}
	if err := (PostgresConfig{URL: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("url-only config rejected: %v", err)
	}
}

func TestRedisConfigAddr(t *testing.T) {
	r := RedisConfig{Host: "cache"}
	if !r.Enabled() {
		t.Fatal("host set but Enabled() is false")
	}
	if r.Addr() != "cache:6379" {
		t.Fatalf("Addr() = %q", r.Addr())
	}
	if (RedisConfig{}).Enabled() {
		t.Fatal("empty host reported enabled")
	}
}
