package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Browser.Mode != "chrome" || !cfg.Browser.Headless {
		t.Errorf("unexpected browser defaults %+v", cfg.Browser)
	}
	if got := strings.Join(cfg.Engines.Order, ","); got != "bing,duck,brave,mojeek,ecosia" {
		t.Errorf("unexpected engine order %q", got)
	}
	if cfg.Engines.MaxPages != 3 || cfg.Engines.Attempts != 3 {
		t.Errorf("unexpected paging defaults %+v", cfg.Engines)
	}
	if cfg.Engines.NavigationTimeout != 30*time.Second {
		t.Errorf("expected 30s navigation timeout, got %v", cfg.Engines.NavigationTimeout)
	}
	if cfg.Enrich.BatchSize != 5 || cfg.Enrich.Timeout != 10*time.Second {
		t.Errorf("unexpected enrich defaults %+v", cfg.Enrich)
	}
	if cfg.Enrich.MaxBodyBytes != 512000 {
		t.Errorf("expected 512KB parsed to 512000, got %d", cfg.Enrich.MaxBodyBytes)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected :3000, got %q", cfg.Server.Addr)
	}
	if cfg.Redis.URL != "" || len(cfg.Kafka.Brokers) != 0 {
		t.Error("expected redis and kafka disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	v := New()
	v.Set("enrich.batch_size", 8)
	v.Set("enrich.max_body_size", "1 MiB")
	v.Set("engines.page_interval", "250ms")
	v.Set("browser.mode", "static")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Enrich.BatchSize != 8 {
		t.Errorf("expected batch size 8, got %d", cfg.Enrich.BatchSize)
	}
	if cfg.Enrich.MaxBodyBytes != 1<<20 {
		t.Errorf("expected 1 MiB, got %d", cfg.Enrich.MaxBodyBytes)
	}
	if cfg.Engines.PageInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Engines.PageInterval)
	}
	if cfg.Browser.Mode != "static" {
		t.Errorf("expected static mode, got %q", cfg.Browser.Mode)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PROSPECTOR_SERVER_ADDR", ":8080")
	t.Setenv("PROSPECTOR_ENRICH_BATCH_SIZE", "3")
	t.Setenv("PROSPECTOR_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Enrich.BatchSize != 3 {
		t.Errorf("expected batch size 3, got %d", cfg.Enrich.BatchSize)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("unexpected redis url %q", cfg.Redis.URL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown browser mode", "browser.mode", "firefox"},
		{"unknown engine", "engines.order", []string{"bing", "google"}},
		{"zero pages", "engines.max_pages", 0},
		{"batch too large", "enrich.batch_size", 500},
		{"bad body size", "enrich.max_body_size", "lots"},
		{"bad broker", "kafka.brokers", []string{"not a broker"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.val)
			}
		})
	}
}
