package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
	"github.com/jeffersonwarrior/asynchttp/internal/logging"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "asynchttp.yaml"

// Config represents the asynchttp configuration file
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Manager   ManagerConfig   `yaml:"manager"`
	Identity  IdentityConfig  `yaml:"identity"`
	Log       LogConfig       `yaml:"log"`
}

// TransportConfig holds network engine settings
type TransportConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	UploadBufferSize    int           `yaml:"upload_buffer_size"`
	DisableHTTP2        bool          `yaml:"disable_http2"`
}

// ManagerConfig holds request manager settings
type ManagerConfig struct {
	MaxRetries int  `yaml:"max_retries"` // 401 retries per request, -1 disables
	Verbose    bool `yaml:"verbose"`     // log wire headers at debug level
}

// IdentityConfig holds local token issuer settings
type IdentityConfig struct {
	SigningKey   string        `yaml:"signing_key"`
	Issuer       string        `yaml:"issuer"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SignRequests bool          `yaml:"sign_requests"`
	StorePath    string        `yaml:"store_path"` // SQLite token cache, in-memory when empty
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads config from a YAML file. A missing file yields the defaults; a
// file that exists but cannot be parsed is an error. Environment overrides
// are applied either way.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	// Apply defaults for missing values
	cfg.applyDefaults()

	return &cfg, nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyEnvOverrides applies ASYNCHTTP_* environment variable overrides
func (c *Config) applyEnvOverrides() {
	c.Transport.Timeout = getEnvDuration("ASYNCHTTP_TIMEOUT", c.Transport.Timeout)
	c.Transport.DisableHTTP2 = getEnvBool("ASYNCHTTP_DISABLE_HTTP2", c.Transport.DisableHTTP2)
	c.Manager.MaxRetries = getEnvInt("ASYNCHTTP_MAX_RETRIES", c.Manager.MaxRetries)
	c.Manager.Verbose = getEnvBool("ASYNCHTTP_VERBOSE", c.Manager.Verbose)
	c.Identity.SigningKey = getEnv("ASYNCHTTP_SIGNING_KEY", c.Identity.SigningKey)
	c.Identity.TokenTTL = getEnvDuration("ASYNCHTTP_TOKEN_TTL", c.Identity.TokenTTL)
	c.Identity.StorePath = getEnv("ASYNCHTTP_TOKEN_STORE", c.Identity.StorePath)
	c.Log.Level = getEnv("ASYNCHTTP_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("ASYNCHTTP_LOG_FILE", c.Log.File)
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30 * time.Second
	}
	if c.Manager.MaxRetries == 0 {
		c.Manager.MaxRetries = 4
	}
	if c.Identity.Issuer == "" {
		c.Identity.Issuer = "asynchttp"
	}
	if c.Identity.TokenTTL == 0 {
		c.Identity.TokenTTL = time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TransportOptions converts the transport section. Zero fields are filled
// in by the transport itself.
func (c *Config) TransportOptions() transport.Config {
	t := c.Transport
	return transport.Config{
		Timeout:             t.Timeout,
		MaxIdleConns:        t.MaxIdleConns,
		MaxIdleConnsPerHost: t.MaxIdleConnsPerHost,
		MaxConnsPerHost:     t.MaxConnsPerHost,
		IdleConnTimeout:     t.IdleConnTimeout,
		UploadBufferSize:    t.UploadBufferSize,
		DisableHTTP2:        t.DisableHTTP2,
	}
}

// IssuerOptions converts the identity section, caching tokens in store.
func (c *Config) IssuerOptions(store identity.TokenStore) identity.IssuerConfig {
	return identity.IssuerConfig{
		SigningKey:   []byte(c.Identity.SigningKey),
		Name:         c.Identity.Issuer,
		TokenTTL:     c.Identity.TokenTTL,
		SignRequests: c.Identity.SignRequests,
		Store:        store,
	}
}

// LoggingOptions converts the log section.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt gets environment variable as int or returns default
func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
