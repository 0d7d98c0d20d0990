package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", cfg.Redis.Addr)
	}
	if cfg.Fetcher.PollInterval != time.Second || cfg.Fetcher.PollAttempts != 60 {
		t.Errorf("fetcher poll = %v x %d, want 1s x 60", cfg.Fetcher.PollInterval, cfg.Fetcher.PollAttempts)
	}
	if cfg.Frontend.LookupTimeout != 60*time.Second {
		t.Errorf("Frontend.LookupTimeout = %v, want 60s", cfg.Frontend.LookupTimeout)
	}
	if cfg.Supervisor.Restart != "always" {
		t.Errorf("Supervisor.Restart = %q, want always", cfg.Supervisor.Restart)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndLoggingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
analyzer:
  logging:
    file:
      path: /var/log/analyzer-{rank}.log
    store:
      key: analyzer-logs
fetcher:
  accounts: [a@example.com, b@example.com]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l := cfg.LoggingFor("analyzer")
	if l.File.MaxBytes != 10<<20 || l.File.BackupCount != 10 {
		t.Errorf("file rotation = %d/%d, want %d/10", l.File.MaxBytes, l.File.BackupCount, 10<<20)
	}
	if l.Store.MaxEntries != 1024 {
		t.Errorf("Store.MaxEntries = %d, want 1024", l.Store.MaxEntries)
	}
	if len(cfg.Fetcher.Accounts) != 2 {
		t.Errorf("Fetcher.Accounts = %v, want 2 entries", cfg.Fetcher.Accounts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REVIEWER_REDIS__ADDR", "localhost:6380")
	t.Setenv("REVIEWER_FRONTEND__PORT", "9999")
	t.Setenv("TEST_REDIS_SECRET", "hunter2")
	t.Setenv("REVIEWER_REDIS__PASSWORD", "${TEST_REDIS_SECRET}")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Errorf("Redis.Addr = %q, want localhost:6380", cfg.Redis.Addr)
	}
	if cfg.Frontend.Port != 9999 {
		t.Errorf("Frontend.Port = %d, want 9999", cfg.Frontend.Port)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("Redis.Password = %q, want substituted value", cfg.Redis.Password)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad store", func(c *Config) { c.Store.Type = "etcd" }, "store.type"},
		{"bad restart", func(c *Config) { c.Supervisor.Restart = "sometimes" }, "supervisor.restart"},
		{"kafka without brokers", func(c *Config) { c.Events.Type = "kafka" }, "events.kafka.brokers"},
		{"bad level", func(c *Config) { c.Fetcher.Logging.Level = "loud" }, "fetcher.logging.level"},
		{"duplicate account", func(c *Config) { c.Fetcher.Accounts = []string{"x", "x"} }, "duplicate"},
		{"bad port", func(c *Config) { c.Frontend.Port = 70000 }, "frontend.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
