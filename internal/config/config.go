// Package config loads the farm configuration from a single YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by the farm server and node agent.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Node     NodeConfig     `yaml:"node"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"` // dev, test, prod
}

// ServerConfig configures the farm management HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig configures the shared state store connection.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql, postgres, sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// LogConfig configures zap output.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
}

// NodeConfig configures the render node agent.
type NodeConfig struct {
	PollInterval      int    `yaml:"poll_interval"`      // seconds between claim attempts
	HeartbeatInterval int    `yaml:"heartbeat_interval"` // seconds between pulse writes
	StaleAfter        int    `yaml:"stale_after"`        // seconds before a silent node is reaped
	ReapInterval      int    `yaml:"reap_interval"`      // seconds between staleness sweeps
	WirePort          int    `yaml:"wire_port"`          // TCP port for the out-of-band channel
	RenderLogDir      string `yaml:"render_log_dir"`
	KeepAllRenderLogs bool   `yaml:"keep_all_render_logs"`
	MetricsPort       int    `yaml:"metrics_port"` // 0 disables the node /metrics listener
}

// Load reads and parses the config file at path, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with all defaults applied, used when no config
// file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hydra"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8282
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 4
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 16
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Node.PollInterval == 0 {
		c.Node.PollInterval = 10
	}
	if c.Node.HeartbeatInterval == 0 {
		c.Node.HeartbeatInterval = 60
	}
	if c.Node.StaleAfter == 0 {
		c.Node.StaleAfter = 300
	}
	if c.Node.ReapInterval == 0 {
		c.Node.ReapInterval = 120
	}
	if c.Node.WirePort == 0 {
		c.Node.WirePort = 3621
	}
	if c.Node.RenderLogDir == "" {
		c.Node.RenderLogDir = "logs/render"
	}
}

// PollDuration returns the node poll interval as a duration.
func (n NodeConfig) PollDuration() time.Duration {
	return time.Duration(n.PollInterval) * time.Second
}

// HeartbeatDuration returns the heartbeat interval as a duration.
func (n NodeConfig) HeartbeatDuration() time.Duration {
	return time.Duration(n.HeartbeatInterval) * time.Second
}

// StaleDuration returns the staleness threshold as a duration.
func (n NodeConfig) StaleDuration() time.Duration {
	return time.Duration(n.StaleAfter) * time.Second
}

// ReapDuration returns the staleness sweep interval as a duration.
func (n NodeConfig) ReapDuration() time.Duration {
	return time.Duration(n.ReapInterval) * time.Second
}
