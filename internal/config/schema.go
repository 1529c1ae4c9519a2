package config

import (
	"time"

	"lanwatch/internal/logger"
)

// Config is the root configuration structure
type Config struct {
	Version  int               `yaml:"version"`
	Scan     ScanConfig        `yaml:"scan"`
	Presence PresenceConfig    `yaml:"presence"`
	Devices  map[string]string `yaml:"devices,omitempty"` // MAC -> display name
	Notify   NotifyConfig      `yaml:"notify"`
	Database DatabaseConfig    `yaml:"database"`
	HTTP     HTTPConfig        `yaml:"http"`
	Report   ReportConfig      `yaml:"report"`
	Log      logger.Config     `yaml:"log"`
}

// Scan backends
const (
	BackendArpScan = "arp-scan"
	BackendNmap    = "nmap"
)

// ScanConfig selects and tunes the network scanner
type ScanConfig struct {
	Backend   string   `yaml:"backend"`
	Interval  Duration `yaml:"interval"`
	Timeout   Duration `yaml:"timeout"`
	Interface string   `yaml:"interface,omitempty"` // arp-scan -I
	Targets   []string `yaml:"targets,omitempty"`   // nmap targets; arp-scan uses --localnet when empty
	Command   string   `yaml:"command,omitempty"`   // arp-scan binary override
}

// PresenceConfig mirrors presence.Thresholds. Zero values take defaults.
type PresenceConfig struct {
	WindowSize      int     `yaml:"window_size"`
	RecentWindow    int     `yaml:"recent_window"`
	SparseMaxRate   float64 `yaml:"sparse_max_rate"`
	AlwaysOnMinRate float64 `yaml:"always_on_min_rate"`
	DeviationDrop   float64 `yaml:"deviation_drop"`
	RecentLowRate   float64 `yaml:"recent_low_rate"`
	Epsilon         float64 `yaml:"epsilon"`
	JustSeen        int     `yaml:"just_seen"`
	OfflineAfter    int     `yaml:"offline_after"`
}

// NotifyConfig holds delivery settings
type NotifyConfig struct {
	// OnlyKnown suppresses notifications for devices missing from Devices
	OnlyKnown   bool          `yaml:"only_known"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     Duration      `yaml:"timeout"`
	Desktop     DesktopConfig `yaml:"desktop"`
	Webhook     WebhookConfig `yaml:"webhook"`
	MQTT        MQTTConfig    `yaml:"mqtt"`
	NATS        NATSConfig    `yaml:"nats"`
}

// DesktopConfig enables notify-send popups
type DesktopConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command,omitempty"`
}

// WebhookConfig posts JSON to a URL
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// MQTTConfig publishes to an MQTT broker
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retained    bool   `yaml:"retained"`
}

// NATSConfig publishes to a NATS subject
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DatabaseConfig holds database settings. An empty path keeps state in memory only.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig holds the status API settings. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ReportConfig controls the per-cycle status table
type ReportConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
