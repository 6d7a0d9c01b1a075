package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Query.Separator != "-_-" {
		t.Errorf("separator = %q", cfg.Query.Separator)
	}
	if cfg.Query.DefaultCollection != "users" {
		t.Errorf("default collection = %q", cfg.Query.DefaultCollection)
	}
	if !cfg.Database.EnsureIndexes {
		t.Error("ensure_indexes should default to true")
	}
}

func TestViperLoader_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "docquery.yaml")
	content := `
http:
  port: 8181
database:
  database_name: inventory
  ensure_indexes: false
query:
  default_match_mode: Exact match
cache:
  ttl: 30s
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("APP_HTTP_PORT", "8282")
	t.Setenv("APP_QUERY_STRICT_COLLECTIONS", "true")
	t.Setenv("APP_OBSERVABILITY_REQUEST_LOGGING_SKIP", "/health,/metrics")

	cfg, err := NewViperLoader(file, "APP").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.Port != 8282 {
		t.Errorf("http.port = %d, env should win", cfg.HTTP.Port)
	}
	if cfg.Database.DatabaseName != "inventory" {
		t.Errorf("database_name = %q, file should win over default", cfg.Database.DatabaseName)
	}
	if cfg.Database.URL != "mongodb://localhost:27017" {
		t.Errorf("database.url = %q, default expected", cfg.Database.URL)
	}
	if cfg.Database.EnsureIndexes {
		t.Error("ensure_indexes should come from the file")
	}
	if cfg.Query.DefaultMatchMode != "Exact match" {
		t.Errorf("default_match_mode = %q", cfg.Query.DefaultMatchMode)
	}
	if !cfg.Query.StrictCollections {
		t.Error("strict_collections should come from env")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("cache.ttl = %v", cfg.Cache.TTL)
	}
	if got := cfg.Observability.RequestLoggingSkip; len(got) != 2 || got[1] != "/metrics" {
		t.Errorf("request_logging_skip = %v", got)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	if _, err := NewViperLoader("/does/not/exist.yaml", "APP").Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestViperLoader_InvalidEnv(t *testing.T) {
	t.Setenv("APP_QUERY_DEFAULT_MATCH_MODE", "Fuzzy")
	_, err := NewViperLoader("", "APP").Load()
	if err == nil || !strings.Contains(err.Error(), "default_match_mode") {
		t.Fatalf("error = %v, want default_match_mode failure", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.Port = 0
	cfg.Database.URL = ""
	cfg.Cache.Enabled = true
	cfg.Query.Separator = ""
	cfg.Observability.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"http.port", "database.url", "cache.url", "query.separator", "observability.log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"management port clash", func(c *Config) { c.Management.Port = c.HTTP.Port }, "must differ"},
		{"non strict without default", func(c *Config) { c.Query.DefaultCollection = "" }, "default_collection"},
		{"negative max per set", func(c *Config) { c.Query.MaxRecordsPerSet = -1 }, "max_records_per_set"},
		{"rate limit burst", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Burst = 0 }, "rate_limit.burst"},
		{"tracing endpoint", func(c *Config) { c.Observability.TracingEnabled = true }, "tracing_endpoint"},
		{"sample rate", func(c *Config) { c.Observability.TracingSampleRate = 1.5 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Query.StrictCollections = true
	cfg.Query.DefaultCollection = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("strict mode without default should validate: %v", err)
	}
}
