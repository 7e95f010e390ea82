// Package config provides loading and parsing of celerymon.yaml
// configuration files. The configuration covers the broker connection and
// the monitor's refresh behavior; everything has a usable default, so an
// empty file (or no file at all) yields a working local setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/monitor"
)

// Config represents a celerymon.yaml configuration file.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Monitor MonitorConfig `yaml:"monitor,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// BrokerConfig selects and tunes the broker connection.
type BrokerConfig struct {
	// URL selects the backend by scheme, e.g. "redis://localhost:6379/0".
	URL string `yaml:"url"`

	// ConnectTimeout bounds connection establishment.
	// Format: Go duration string (e.g., "5s"). Default: 5s.
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`

	// OperationTimeout bounds each broker fetch or mutation.
	// Format: Go duration string. Default: 10s.
	OperationTimeout string `yaml:"operation_timeout,omitempty"`
}

// MonitorConfig tunes the refresh loop and reconstruction heuristics.
type MonitorConfig struct {
	// RefreshInterval is the delay between refresh cycles.
	// Format: Go duration string. Default: 2s.
	RefreshInterval string `yaml:"refresh_interval,omitempty"`

	// HeartbeatWindow is how recent a worker's evidence must be for the
	// worker to be classified online.
	// Format: Go duration string. Default: 5m.
	HeartbeatWindow string `yaml:"heartbeat_window,omitempty"`

	// ScanLimit bounds how many keys or list elements one fetch inspects.
	// Default: 500.
	ScanLimit int64 `yaml:"scan_limit,omitempty"`
}

// LoggingConfig tunes structured log output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level,omitempty"`

	// Format is "json" or "text". Default: "text".
	Format string `yaml:"format,omitempty"`
}

// DefaultBrokerURL is used when no URL is configured anywhere.
const DefaultBrokerURL = "redis://localhost:6379/0"

// GetURL returns the configured broker URL or the local default.
func (b *BrokerConfig) GetURL() string {
	if b == nil || b.URL == "" {
		return DefaultBrokerURL
	}
	return b.URL
}

// GetConnectTimeout parses the connect timeout string and returns a
// duration. Returns the default value if not set or invalid.
func (b *BrokerConfig) GetConnectTimeout() time.Duration {
	if b == nil {
		return broker.DefaultConnectTimeout
	}
	return parseDuration(b.ConnectTimeout, broker.DefaultConnectTimeout)
}

// GetOperationTimeout parses the operation timeout string and returns a
// duration. Returns the default value if not set or invalid.
func (b *BrokerConfig) GetOperationTimeout() time.Duration {
	if b == nil {
		return broker.DefaultOperationTimeout
	}
	return parseDuration(b.OperationTimeout, broker.DefaultOperationTimeout)
}

// GetRefreshInterval parses the refresh interval string and returns a
// duration. Returns the default value if not set or invalid.
func (m *MonitorConfig) GetRefreshInterval() time.Duration {
	if m == nil {
		return monitor.DefaultInterval
	}
	return parseDuration(m.RefreshInterval, monitor.DefaultInterval)
}

// GetHeartbeatWindow parses the heartbeat window string and returns a
// duration. Returns the default value if not set or invalid.
func (m *MonitorConfig) GetHeartbeatWindow() time.Duration {
	if m == nil {
		return broker.DefaultHeartbeatWindow
	}
	return parseDuration(m.HeartbeatWindow, broker.DefaultHeartbeatWindow)
}

// GetScanLimit returns the configured scan limit or the default value.
func (m *MonitorConfig) GetScanLimit() int64 {
	if m == nil || m.ScanLimit <= 0 {
		return broker.DefaultScanLimit
	}
	return m.ScanLimit
}

// GetLevel returns the configured log level or "info".
func (l *LoggingConfig) GetLevel() string {
	if l == nil || l.Level == "" {
		return "info"
	}
	return l.Level
}

// GetFormat returns the configured log format or "text".
func (l *LoggingConfig) GetFormat() string {
	if l == nil || l.Format == "" {
		return "text"
	}
	return l.Format
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// BrokerOptions assembles broker.Options from the configuration.
func (c *Config) BrokerOptions() broker.Options {
	return broker.Options{
		URL:              c.Broker.GetURL(),
		ConnectTimeout:   c.Broker.GetConnectTimeout(),
		OperationTimeout: c.Broker.GetOperationTimeout(),
		HeartbeatWindow:  c.Monitor.GetHeartbeatWindow(),
		ScanLimit:        c.Monitor.GetScanLimit(),
	}
}

// Load reads and parses a celerymon.yaml file from the given path. If the
// path is a directory, it looks for celerymon.yaml or celerymon.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "celerymon.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "celerymon.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no celerymon.yaml or celerymon.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}
