package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %s", cfg.Transport.Timeout)
	}
	if cfg.Manager.MaxRetries != 4 {
		t.Errorf("expected max retries 4, got %d", cfg.Manager.MaxRetries)
	}
	if cfg.Identity.Issuer != "asynchttp" {
		t.Errorf("expected issuer 'asynchttp', got %s", cfg.Identity.Issuer)
	}
	if cfg.Identity.TokenTTL != time.Hour {
		t.Errorf("expected token ttl 1h, got %s", cfg.Identity.TokenTTL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Should return default config
	if cfg.Manager.MaxRetries != 4 {
		t.Errorf("expected default max retries 4, got %d", cfg.Manager.MaxRetries)
	}
}

func TestLoadValidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "asynchttp.yaml")

	yaml := `
transport:
  timeout: 5s
  max_conns_per_host: 2
  disable_http2: true
manager:
  max_retries: 2
  verbose: true
identity:
  signing_key: secret
  token_ttl: 10m
  sign_requests: true
  store_path: /tmp/tokens.db
log:
  level: debug
  file: /tmp/asynchttp.log
`

	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Transport.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Transport.Timeout)
	}
	if cfg.Transport.MaxConnsPerHost != 2 {
		t.Errorf("expected max conns per host 2, got %d", cfg.Transport.MaxConnsPerHost)
	}
	if !cfg.Transport.DisableHTTP2 {
		t.Error("expected http2 disabled")
	}
	if cfg.Manager.MaxRetries != 2 || !cfg.Manager.Verbose {
		t.Errorf("unexpected manager config %+v", cfg.Manager)
	}
	if cfg.Identity.SigningKey != "secret" {
		t.Errorf("expected signing key 'secret', got %s", cfg.Identity.SigningKey)
	}
	if cfg.Identity.TokenTTL != 10*time.Minute {
		t.Errorf("expected token ttl 10m, got %s", cfg.Identity.TokenTTL)
	}
	if !cfg.Identity.SignRequests {
		t.Error("expected request signing enabled")
	}
	if cfg.Identity.StorePath != "/tmp/tokens.db" {
		t.Errorf("expected store path '/tmp/tokens.db', got %s", cfg.Identity.StorePath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/asynchttp.log" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}

	// Unset values get defaults
	if cfg.Identity.Issuer != "asynchttp" {
		t.Errorf("expected default issuer, got %s", cfg.Identity.Issuer)
	}
}

func TestLoadBadlyFormattedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")

	badYAML := `
transport:
	timeout: 5s
  manager:
max_retries: [
`

	if err := os.WriteFile(configPath, []byte(badYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "asynchttp.yaml")
	if err := os.WriteFile(configPath, []byte("transport:\n  timeout: soon\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected an error for an invalid duration")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASYNCHTTP_TIMEOUT", "2s")
	t.Setenv("ASYNCHTTP_DISABLE_HTTP2", "true")
	t.Setenv("ASYNCHTTP_MAX_RETRIES", "-1")
	t.Setenv("ASYNCHTTP_VERBOSE", "1")
	t.Setenv("ASYNCHTTP_SIGNING_KEY", "from-env")
	t.Setenv("ASYNCHTTP_TOKEN_TTL", "90s")
	t.Setenv("ASYNCHTTP_TOKEN_STORE", "/custom/tokens.db")
	t.Setenv("ASYNCHTTP_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Transport.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %s", cfg.Transport.Timeout)
	}
	if !cfg.Transport.DisableHTTP2 {
		t.Error("expected http2 disabled")
	}
	if cfg.Manager.MaxRetries != -1 {
		t.Errorf("expected max retries -1, got %d", cfg.Manager.MaxRetries)
	}
	if !cfg.Manager.Verbose {
		t.Error("expected verbose")
	}
	if cfg.Identity.SigningKey != "from-env" {
		t.Errorf("expected signing key 'from-env', got %s", cfg.Identity.SigningKey)
	}
	if cfg.Identity.TokenTTL != 90*time.Second {
		t.Errorf("expected token ttl 90s, got %s", cfg.Identity.TokenTTL)
	}
	if cfg.Identity.StorePath != "/custom/tokens.db" {
		t.Errorf("expected store path '/custom/tokens.db', got %s", cfg.Identity.StorePath)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level 'warn', got %s", cfg.Log.Level)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "asynchttp.yaml")

	yaml := `
manager:
  max_retries: 2
log:
  level: debug
`

	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Environment variables should override YAML
	t.Setenv("ASYNCHTTP_MAX_RETRIES", "7")
	t.Setenv("ASYNCHTTP_TIMEOUT", "not-a-duration")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Manager.MaxRetries != 7 {
		t.Errorf("expected max retries 7 (from env), got %d", cfg.Manager.MaxRetries)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug' (from yaml), got %s", cfg.Log.Level)
	}
	// Invalid env values are ignored
	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.Transport.Timeout)
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.UploadBufferSize = 1024
	cfg.Identity.SigningKey = "k"
	cfg.Log.File = "out.log"

	if got := cfg.TransportOptions(); got.Timeout != 30*time.Second || got.UploadBufferSize != 1024 {
		t.Errorf("unexpected transport options %+v", got)
	}

	store := identity.NewMemoryStore()
	ic := cfg.IssuerOptions(store)
	if string(ic.SigningKey) != "k" || ic.Name != "asynchttp" || ic.TokenTTL != time.Hour || ic.Store != store {
		t.Errorf("unexpected issuer options %+v", ic)
	}

	if lc := cfg.LoggingOptions(); lc.Level != "info" || lc.File != "out.log" {
		t.Errorf("unexpected logging options %+v", lc)
	}
}
