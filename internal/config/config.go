// Package config provides configuration management for lanwatch.
//
// Config file locations (priority order):
//  1. $LANWATCH_CONFIG
//  2. ./lanwatch.yaml
//  3. ~/.config/lanwatch/config.yaml
//  4. /etc/lanwatch/config.yaml
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lanwatch/internal/domain"
	"lanwatch/internal/logger"
	"lanwatch/internal/presence"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes, defaults and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Report.Enabled = true
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Scan.Backend == "" {
		c.Scan.Backend = BackendArpScan
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = Duration(30 * time.Second)
	}
	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = Duration(2 * time.Minute)
	}

	p := &c.Presence
	if p.WindowSize == 0 {
		p.WindowSize = presence.DefaultCapacity
	}
	if p.RecentWindow == 0 {
		p.RecentWindow = presence.DefaultRecentWindow
	}
	if p.SparseMaxRate == 0 {
		p.SparseMaxRate = presence.DefaultSparseMaxRate
	}
	if p.AlwaysOnMinRate == 0 {
		p.AlwaysOnMinRate = presence.DefaultAlwaysOnMinRate
	}
	if p.DeviationDrop == 0 {
		p.DeviationDrop = presence.DefaultDeviationDrop
	}
	if p.RecentLowRate == 0 {
		p.RecentLowRate = presence.DefaultRecentLowRate
	}

	if c.Notify.Concurrency == 0 {
		c.Notify.Concurrency = 4
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = Duration(10 * time.Second)
	}
	if c.Notify.MQTT.ClientID == "" {
		c.Notify.MQTT.ClientID = "lanwatch"
	}
	if c.Notify.MQTT.TopicPrefix == "" {
		c.Notify.MQTT.TopicPrefix = "lanwatch/devices"
	}
	if c.Notify.NATS.Subject == "" {
		c.Notify.NATS.Subject = "lanwatch.presence"
	}

	if c.Log.Level == "" && !c.Log.Debug {
		c.Log.Level = logger.DefaultConfig().Level
	}
	if c.Log.Output == "" {
		c.Log.Output = logger.DefaultConfig().Output
	}
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Scan.Backend {
	case BackendArpScan:
	case BackendNmap:
		if len(c.Scan.Targets) == 0 {
			errs = append(errs, errors.New("scan.targets is required for the nmap backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("scan.backend %q must be %q or %q", c.Scan.Backend, BackendArpScan, BackendNmap))
	}
	if c.Scan.Interval.Duration() <= 0 {
		errs = append(errs, errors.New("scan.interval must be positive"))
	}

	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("presence: %w", err))
	}

	if _, err := c.DeviceNames(); err != nil {
		errs = append(errs, err)
	}

	if c.Notify.Concurrency < 1 {
		errs = append(errs, errors.New("notify.concurrency must be at least 1"))
	}
	if c.Notify.Webhook.Enabled {
		if u, err := url.Parse(c.Notify.Webhook.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("notify.webhook.url %q is not an absolute URL", c.Notify.Webhook.URL))
		}
	}
	if c.Notify.MQTT.Enabled {
		if c.Notify.MQTT.Broker == "" {
			errs = append(errs, errors.New("notify.mqtt.broker is required"))
		}
		if c.Notify.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("notify.mqtt.qos %d must be 0, 1 or 2", c.Notify.MQTT.QoS))
		}
	}
	if c.Notify.NATS.Enabled && c.Notify.NATS.URL == "" {
		errs = append(errs, errors.New("notify.nats.url is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Thresholds converts the presence section to classifier tuning
func (c *Config) Thresholds() presence.Thresholds {
	p := c.Presence
	return presence.Thresholds{
		Capacity:        p.WindowSize,
		RecentWindow:    p.RecentWindow,
		SparseMaxRate:   p.SparseMaxRate,
		AlwaysOnMinRate: p.AlwaysOnMinRate,
		DeviationDrop:   p.DeviationDrop,
		RecentLowRate:   p.RecentLowRate,
		Epsilon:         p.Epsilon,
		JustSeen:        p.JustSeen,
		OfflineAfter:    p.OfflineAfter,
	}.WithDerivedDefaults()
}

// DeviceNames returns the configured names keyed by normalized MAC
func (c *Config) DeviceNames() (map[domain.MACAddress]string, error) {
	names := make(map[domain.MACAddress]string, len(c.Devices))
	var errs []error
	for raw, name := range c.Devices {
		mac, err := domain.ParseMACAddress(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("devices: %w", err))
			continue
		}
		names[mac] = name
	}
	return names, errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	t := c.Thresholds()
	summary := fmt.Sprintf("Scan: %s every %s", c.Scan.Backend, c.Scan.Interval.Duration())
	summary += fmt.Sprintf(", window %d/%d", t.Capacity, t.RecentWindow)
	summary += fmt.Sprintf(", %d named devices", len(c.Devices))

	var sinks []string
	if c.Notify.Desktop.Enabled {
		sinks = append(sinks, "desktop")
	}
	if c.Notify.Webhook.Enabled {
		sinks = append(sinks, "webhook")
	}
	if c.Notify.MQTT.Enabled {
		sinks = append(sinks, "mqtt")
	}
	if c.Notify.NATS.Enabled {
		sinks = append(sinks, "nats")
	}
	summary += fmt.Sprintf(", notify %v", sinks)
	return summary
}
