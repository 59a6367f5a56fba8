package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want :8081", cfg.HTTPAddr)
	}
	if cfg.ConflictStrategy != "server_wins" {
		t.Errorf("ConflictStrategy = %q, want server_wins", cfg.ConflictStrategy)
	}
	if cfg.PullPageSize != 1000 {
		t.Errorf("PullPageSize = %d, want 1000", cfg.PullPageSize)
	}
	if cfg.PushBatchLimit != 500 {
		t.Errorf("PushBatchLimit = %d, want 500", cfg.PushBatchLimit)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SYNCAPI_CONFLICT_STRATEGY", "newest_wins")
	t.Setenv("SYNCAPI_HTTP_ADDR", ":9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConflictStrategy != "newest_wins" {
		t.Errorf("ConflictStrategy = %q, want newest_wins", cfg.ConflictStrategy)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.yaml")
	data := "conflict_strategy: client_wins\npull_page_size: 250\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConflictStrategy != "client_wins" {
		t.Errorf("ConflictStrategy = %q, want client_wins", cfg.ConflictStrategy)
	}
	if cfg.PullPageSize != 250 {
		t.Errorf("PullPageSize = %d, want 250", cfg.PullPageSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"unknown strategy", func(c *Config) { c.ConflictStrategy = "merge" }, true},
		{"empty strategy", func(c *Config) { c.ConflictStrategy = "" }, true},
		{"page size over cap", func(c *Config) { c.PullPageSize = 5000 }, true},
		{"page size zero", func(c *Config) { c.PullPageSize = 0 }, true},
		{"batch limit zero", func(c *Config) { c.PushBatchLimit = 0 }, true},
		{"rate limit zero", func(c *Config) { c.RateLimitBurst = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				ConflictStrategy:       "server_wins",
				PullPageSize:           1000,
				PushBatchLimit:         500,
				RateLimitWindowSeconds: 60,
				RateLimitMaxRequests:   600,
				RateLimitBurst:         120,
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
