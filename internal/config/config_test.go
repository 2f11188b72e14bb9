package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval())
	}
}

func TestLoadClientYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "base_url: http://file.example\npoll_interval_seconds: 7\nlog_mode: prod\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUIZDESK_BASE_URL", "http://env.example")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://env.example" {
		t.Fatalf("env override lost: %q", cfg.BaseURL)
	}
	if cfg.PollIntervalSeconds != 7 || cfg.LogMode != "prod" {
		t.Fatalf("yaml values lost: %+v", cfg)
	}
}

func TestLoadClientMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(":\nnot yaml ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClient(path); err == nil {
		t.Fatal("malformed config accepted")
	}
}

func TestLoadClientSanitizesNonsense(t *testing.T) {
	t.Setenv("QUIZDESK_POLL_INTERVAL", "-4")
	cfg, err := LoadClient("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollIntervalSeconds != 3 {
		t.Fatalf("negative interval kept: %d", cfg.PollIntervalSeconds)
	}
}

func TestStubFromEnv(t *testing.T) {
	t.Setenv("STUB_ADDR", ":9999")
	t.Setenv("STUB_DB_DRIVER", "sqlite")
	t.Setenv("STUB_PROCESSING_DELAY", "10ms")
	cfg := StubFromEnv()
	if cfg.Addr != ":9999" || cfg.DBDriver != "sqlite" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.ProcessingDelay != 10*time.Millisecond {
		t.Fatalf("duration not parsed: %v", cfg.ProcessingDelay)
	}
	if cfg.TokenTTL != 8*time.Hour {
		t.Fatalf("default ttl = %v", cfg.TokenTTL)
	}
}
