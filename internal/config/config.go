// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration document.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures the PostgreSQL backing store.
type DatabaseConfig struct {
	DSN          string   `yaml:"dsn"`
	MaxOpenConns int      `yaml:"max_open_conns"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

// RedisConfig configures the optional refresh-state cache.
type RedisConfig struct {
	Enabled bool     `yaml:"enabled"`
	Addr    string   `yaml:"addr"`
	TTL     Duration `yaml:"ttl"`
}

// RefreshConfig configures a refresh run.
type RefreshConfig struct {
	Workers      int      `yaml:"workers"`
	Assets       []string `yaml:"assets"`     // empty = all assets in source
	Timeframes   []string `yaml:"timeframes"` // empty = full registry
	ArtifactsDir string   `yaml:"artifacts_dir"`
	FetchRPS     float64  `yaml:"fetch_rps"` // source read rate limit, 0 = unlimited
}

// MonitorConfig configures the monitoring HTTP server.
type MonitorConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if dsn := os.Getenv("BARFORGE_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if dsn := os.Getenv("BARFORGE_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 8
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = Duration(30 * time.Second)
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = Duration(10 * time.Minute)
	}
	if c.Refresh.Workers == 0 {
		c.Refresh.Workers = 4
	}
	if c.Refresh.ArtifactsDir == "" {
		c.Refresh.ArtifactsDir = "artifacts/runs"
	}
	if c.Monitor.ListenAddr == "" {
		c.Monitor.ListenAddr = ":8088"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
