// Package config loads the application configuration from an optional YAML
// file, then applies environment variable overrides. A .env file in the
// working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fitlocker/fitlocker/logging"
)

// Config is the full application configuration.
type Config struct {
	// DBPath is the SQLite database file. Empty means ./fitlocker.db.
	DBPath string `yaml:"db_path"`

	// InitTimeout bounds local store initialization; past it the app runs
	// in degraded not-ready mode.
	InitTimeout time.Duration `yaml:"init_timeout"`

	Remote RemoteConfig `yaml:"remote"`
	Server ServerConfig `yaml:"server"`

	// Logging follows the LOG_* environment variables only; see
	// logging.GetConfigFromEnv.
	Logging logging.Config `yaml:"-"`

	// MetricsAddr, when set, exposes Prometheus metrics on that address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// RemoteConfig configures the cloud client side.
type RemoteConfig struct {
	// BaseURL of the remote store API. Empty disables cloud sync.
	BaseURL string `yaml:"base_url"`

	// Token is the bearer session token.
	Token string `yaml:"token"`

	// SyncInterval between background reconciliation passes.
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// ServerConfig configures the reference cloud server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// SessionSecret signs the HS256 session tokens.
	SessionSecret string `yaml:"session_secret"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:      "fitlocker.db",
		InitTimeout: 5 * time.Second,
		Remote: RemoteConfig{
			SyncInterval: 5 * time.Minute,
		},
		Server: ServerConfig{
			ListenAddr: ":8480",
		},
		Logging: logging.GetConfigFromEnv(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty, no file is read), then environment overrides. A .env file
// is loaded first so its variables participate in the overrides.
func Load(path string) (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.Logging = logging.GetConfigFromEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FITLOCKER_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("FITLOCKER_INIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitTimeout = d
		}
	}
	if v := os.Getenv("FITLOCKER_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("FITLOCKER_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("FITLOCKER_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Remote.SyncInterval = d
		}
	}
	if v := os.Getenv("FITLOCKER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("FITLOCKER_SESSION_SECRET"); v != "" {
		c.Server.SessionSecret = v
	}
	if v := os.Getenv("FITLOCKER_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// CloudConfigured reports whether a remote store is configured at all.
func (c Config) CloudConfigured() bool {
	return c.Remote.BaseURL != ""
}

// ParseBool reads a boolean environment variable with a default.
func ParseBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
