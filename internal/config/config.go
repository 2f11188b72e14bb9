// Package config loads settings for the quizdesk CLI and the stub
// backend. The CLI reads an optional YAML file overlaid with QUIZDESK_*
// environment variables; the stub is environment-only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Client configures the quizdesk CLI.
type Client struct {
	BaseURL               string `yaml:"base_url"`
	CredentialsPath       string `yaml:"credentials_path"`
	PollIntervalSeconds   int    `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	LogMode               string `yaml:"log_mode"`
}

func (c Client) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Client) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DefaultClientPath is where LoadClient looks when no --config flag is
// given.
func DefaultClientPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "quizdesk", "config.yaml"), nil
}

// LoadClient builds the client config: defaults, then the YAML file at
// path if it exists, then environment overrides. A missing file is fine;
// a malformed one is not.
func LoadClient(path string) (Client, error) {
	cfg := Client{
		BaseURL:               "http://localhost:8080",
		PollIntervalSeconds:   3,
		RequestTimeoutSeconds: 30,
		LogMode:               "dev",
	}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults + env only
		case err != nil:
			return cfg, fmt.Errorf("open config %s: %w", path, err)
		default:
			dec := yaml.NewDecoder(f)
			decErr := dec.Decode(&cfg)
			f.Close()
			if decErr != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, decErr)
			}
		}
	}
	cfg.BaseURL = envOr("QUIZDESK_BASE_URL", cfg.BaseURL)
	cfg.CredentialsPath = envOr("QUIZDESK_CREDENTIALS_PATH", cfg.CredentialsPath)
	cfg.PollIntervalSeconds = envInt("QUIZDESK_POLL_INTERVAL", cfg.PollIntervalSeconds)
	cfg.RequestTimeoutSeconds = envInt("QUIZDESK_TIMEOUT", cfg.RequestTimeoutSeconds)
	cfg.LogMode = envOr("QUIZDESK_LOG_MODE", cfg.LogMode)

	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 3
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	return cfg, nil
}

// Stub configures the quizstubd development backend.
type Stub struct {
	Addr        string
	DBDriver    string // memory|sqlite|postgres
	DBDSN       string
	DataDir     string // uploaded PDF bytes
	AuthSecret  string
	TokenTTL    time.Duration
	CORSOrigins []string

	// Pipeline pacing; near-zero values make integration tests fast.
	ProcessingDelay time.Duration
	GenerationDelay time.Duration
}

func StubFromEnv() Stub {
	return Stub{
		Addr:            envOr("STUB_ADDR", ":8080"),
		DBDriver:        envOr("STUB_DB_DRIVER", "memory"),
		DBDSN:           envOr("STUB_DB_DSN", ""),
		DataDir:         envOr("STUB_DATA_DIR", "./data"),
		AuthSecret:      envOr("STUB_AUTH_SECRET", "dev-secret-change-me"),
		TokenTTL:        envDuration("STUB_TOKEN_TTL", 8*time.Hour),
		CORSOrigins:     csvOr("STUB_CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		ProcessingDelay: envDuration("STUB_PROCESSING_DELAY", 4*time.Second),
		GenerationDelay: envDuration("STUB_GENERATION_DELAY", 5*time.Second),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
