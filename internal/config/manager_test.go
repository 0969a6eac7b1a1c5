package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"logging": {"level": "DEBUG", "console": true, "file": {"enabled": false, "path": ""}},
		"scheduler": {"enabled": true, "workers": 4, "default_timeout": "30s", "timezone": "UTC"},
		"notifications": {"enabled": true, "max_visible": 5},
		"quota": {
			"enabled": true,
			"poller": {"enabled": true, "endpoint": "https://api.example.com", "token": "tok", "interval": "5m"}
		}
	}`)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Workers != 4 {
		t.Errorf("scheduler config not decoded: %+v", cfg.Scheduler)
	}
	if cfg.Notifications == nil || cfg.Notifications.MaxVisible != 5 {
		t.Errorf("notifications config not decoded: %+v", cfg.Notifications)
	}
	if cfg.Quota == nil || cfg.Quota.Poller.Endpoint != "https://api.example.com" {
		t.Errorf("quota config not decoded: %+v", cfg.Quota)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: INFO
  console: true
scheduler:
  enabled: true
  timezone: Asia/Jakarta
quota:
  enabled: true
  poller:
    enabled: true
    endpoint: https://api.example.com
    interval: 5m
`)

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Timezone != "Asia/Jakarta" {
		t.Errorf("Scheduler.Timezone = %q", cfg.Scheduler.Timezone)
	}
	if cfg.Quota == nil || cfg.Quota.Poller.Interval != "5m" {
		t.Errorf("quota poller config not decoded: %+v", cfg.Quota)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"logging": {"level": "INFO"}, "bogus_section": {}}`)
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"logging": {"level": "INFO"}}{"logging": {}}`)
	if _, err := NewConfigManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"logging": {"level": "INFO"}}`)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-sub:
		if got != next {
			t.Fatal("subscriber received wrong config")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not notified")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}

	if d, err := ParseDurationOrDefault("x", "", 5*time.Minute); err != nil || d != 5*time.Minute {
		t.Fatalf("default: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "10s", 5*time.Minute); err != nil || d != 10*time.Second {
		t.Fatalf("explicit: got %v, %v", d, err)
	}
}
