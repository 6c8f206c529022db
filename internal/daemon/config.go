// Package daemon wires the stampd components together: configuration,
// logging, the entity store, the workflow services, and the HTTP server.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ─── Configuration ──────────────────────────────────────────────────────────
// Config lives at ~/.stampd/config.toml (override with STAMPD_HOME).
// A missing file means pure defaults; a present file overrides per key.

// Config is the daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Redemption RedemptionConfig `toml:"redemption"`
	Watch      WatchConfig      `toml:"watch"`
	Journal    JournalConfig    `toml:"journal"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Log        LogConfig        `toml:"log"`
	Demo       DemoConfig       `toml:"demo"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RedemptionConfig configures the redemption countdown.
// TTLSeconds outside [30, 60] is clamped into range at load time.
type RedemptionConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// WatchConfig configures the decision polling loop.
type WatchConfig struct {
	IntervalMS int `toml:"interval_ms"`
}

// JournalConfig configures the sqlite decision journal.
// An empty path disables the journal and the history endpoints.
type JournalConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// DemoConfig seeds a demo store, card, and reward at boot so the
// surfaces have something to point at on a fresh install.
type DemoConfig struct {
	Seed bool `toml:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7410,
		},
		Redemption: RedemptionConfig{
			TTLSeconds: 60,
		},
		Watch: WatchConfig{
			IntervalMS: 500,
		},
		Journal: JournalConfig{
			Path: filepath.Join(homeDir(), "journal.db"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Demo: DemoConfig{
			Seed: false,
		},
	}
}

// LoadConfig reads ~/.stampd/config.toml over the defaults. A missing
// file is not an error.
func LoadConfig() (Config, error) {
	return loadConfigFrom(filepath.Join(homeDir(), "config.toml"))
}

func loadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps out-of-range values instead of rejecting the file.
func (c *Config) normalize() {
	if c.Redemption.TTLSeconds < 30 {
		c.Redemption.TTLSeconds = 30
	}
	if c.Redemption.TTLSeconds > 60 {
		c.Redemption.TTLSeconds = 60
	}
	if c.Watch.IntervalMS <= 0 {
		c.Watch.IntervalMS = 500
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		c.API.Port = 7410
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Log.Level = "info"
	}
}

// Addr returns the host:port the API listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// homeDir returns the stampd home directory (~/.stampd, or STAMPD_HOME).
func homeDir() string {
	if env := os.Getenv("STAMPD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stampd")
}
