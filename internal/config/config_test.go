package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Settings != DefaultSettings() {
		t.Errorf("Settings = %+v, expected defaults %+v", cfg.Settings, DefaultSettings())
	}
	if cfg.HTTP.Timeout != 15*time.Second {
		t.Errorf("HTTP.Timeout = %v, expected 15s", cfg.HTTP.Timeout)
	}
	if cfg.Cache.Backend != BackendSQLite {
		t.Errorf("Cache.Backend = %q, expected %q", cfg.Cache.Backend, BackendSQLite)
	}
	if cfg.Images.MaxDimension != 400 || cfg.Images.Quality != 90 {
		t.Errorf("Images = %+v, expected 400/90", cfg.Images)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  url: https://site.example
  name: My Site
settings:
  all_blocks: true
  external_blank: false
  cache_hours: 6
http:
  timeout: 3s
cache:
  backend: redis
redis:
  addr: redis:6379
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Site.URL != "https://site.example" || cfg.Site.Name != "My Site" {
		t.Errorf("Site = %+v", cfg.Site)
	}
	expected := Settings{ExternalEnabled: true, InternalEnabled: true, AllBlocks: true, ExternalBlank: false, CacheHours: 6}
	if cfg.Settings != expected {
		t.Errorf("Settings = %+v, expected %+v", cfg.Settings, expected)
	}
	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("HTTP.Timeout = %v, expected 3s", cfg.HTTP.Timeout)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Cache = %+v, Redis = %+v", cfg.Cache, cfg.Redis)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "cache:\n  backend: memcached\n"},
		{"negative cache hours", "settings:\n  cache_hours: -1\n"},
		{"malformed yaml", "site: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("LoadConfig() expected error")
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	cfg.Site.URL = "https://blog.example"
	cfg.Settings.InternalEnabled = false
	cfg.Images.StrictHTTPS = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() after save error: %v", err)
	}
	if loaded.Site.URL != "https://blog.example" || loaded.Settings.InternalEnabled || !loaded.Images.StrictHTTPS {
		t.Errorf("loaded config = %+v", loaded)
	}
	if loaded.HTTP.Timeout != cfg.HTTP.Timeout {
		t.Errorf("HTTP.Timeout = %v, expected %v", loaded.HTTP.Timeout, cfg.HTTP.Timeout)
	}
}

func TestSettings_CacheTTL(t *testing.T) {
	tests := []struct {
		hours    int
		expected time.Duration
	}{
		{24, 24 * time.Hour},
		{1, time.Hour},
		{0, DefaultCacheHours * time.Hour},
		{-5, DefaultCacheHours * time.Hour},
	}
	for _, tt := range tests {
		if got := (Settings{CacheHours: tt.hours}).CacheTTL(); got != tt.expected {
			t.Errorf("CacheTTL(%d) = %v, expected %v", tt.hours, got, tt.expected)
		}
	}
}
