// Package config loads domreview settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level domreview configuration.
type Config struct {
	Page     PageConfig    `yaml:"page"`
	Storage  StorageConfig `yaml:"storage"`
	Debounce time.Duration `yaml:"debounce"`
	Server   ServerConfig  `yaml:"server"`
	Browser  BrowserConfig `yaml:"browser"`
	Sinks    []SinkConfig  `yaml:"sinks"`
}

// PageConfig names the page under review.
type PageConfig struct {
	URL   string `yaml:"url"`
	Level string `yaml:"level"` // http | headless | auto
	// File reads the page from disk instead of fetching URL. URL still
	// sets the page location.
	File string `yaml:"file"`
}

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Driver    string `yaml:"driver"` // sqlite | memory
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`

	// Watch is how often an sqlite store polls for writes made by other
	// processes. Negative disables polling.
	Watch time.Duration `yaml:"watch"`

	// BusyTimeout is how long an sqlite write waits on another process
	// holding the database lock.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	// Synchronous is the sqlite synchronous mode: OFF, NORMAL, FULL or EXTRA.
	Synchronous string `yaml:"synchronous"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	MCP  bool   `yaml:"mcp"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	Headful          bool          `yaml:"headful"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
}

// SinkConfig defines a change sink.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`
	Retries int    `yaml:"retries"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown drivers, levels and sink types.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch strings.ToUpper(c.Storage.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("config: unknown sqlite synchronous mode %q", c.Storage.Synchronous)
	}
	if c.Storage.BusyTimeout < 0 {
		return fmt.Errorf("config: negative busy_timeout %v", c.Storage.BusyTimeout)
	}
	switch c.Page.Level {
	case "http", "headless", "auto":
	default:
		return fmt.Errorf("config: unknown page level %q", c.Page.Level)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sink %d: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sink %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Page.Level == "" {
		c.Page.Level = "auto"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "domreview.db"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "dom-review"
	}
	if c.Storage.Watch == 0 {
		c.Storage.Watch = time.Second
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = 10 * time.Second
	}
	if c.Storage.Synchronous == "" {
		c.Storage.Synchronous = "NORMAL"
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8484"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
}
