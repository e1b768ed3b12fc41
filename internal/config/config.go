// Package config handles pipelined configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/pipelined/config.yaml, /config/config.yaml,
// /etc/pipelined/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pipelined", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/pipelined/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all pipelined configuration. It governs the control API
// listener and the ambient services the engine wires into every pipeline
// run (file store, history log, MQTT sink, plugin catalog); it does not
// itself carry a pipeline definition, which arrives at runtime via setConfig.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Store      StoreConfig      `yaml:"store"`
	History    HistoryConfig    `yaml:"history"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Observer   ObserverConfig   `yaml:"observer"`
	Manifest   ManifestConfig   `yaml:"manifest"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
}

// ListenConfig defines the control API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// StoreConfig defines the file store backing image resources.
type StoreConfig struct {
	// Dir is the on-disk directory files are written to.
	Dir string `yaml:"dir"`
	// BaseURL is the externally reachable prefix used to build
	// "{storeUrl}/file/{name}" download URLs embedded in serialized
	// image resources.
	BaseURL string `yaml:"base_url"`
}

// HistoryConfig defines the sqlite-backed run/execution audit log.
// This is separate from a resource's in-memory bounded pool; it never
// replays resource history. The control API only reads it, and the
// pipeline manager does not write runs or node executions to it.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Driver  string `yaml:"driver"` // "sqlite3" (default) or "sqlite" (pure Go)
}

// MQTTConfig defines the optional MQTT notification sink.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BrokerURL  string `yaml:"broker_url"` // e.g. "mqtt://localhost:1883"
	ClientID   string `yaml:"client_id"`
	TopicBase  string `yaml:"topic_base"`
	InstanceID string `yaml:"instance_id"` // populated at runtime if empty
}

// ObserverConfig defines the bounded fan-out queue every observer is fed
// through (§4.7 of the notification contract: lossy, FIFO drop-oldest).
type ObserverConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	SendTimeoutMS int `yaml:"send_timeout_ms"`
}

// ManifestConfig defines optional plugin catalog sync settings.
type ManifestConfig struct {
	// GitHubRepo, if set, is an "owner/name" repo whose releases are
	// listed to populate a supplementary plugin catalog. The registry
	// of constructors itself is always compile-time; this only informs
	// operators which kinds are available to fetch.
	GitHubRepo string `yaml:"github_repo"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}, ${MQTT_BROKER_URL}).
	// This is a convenience for container deployments; the recommended
	// approach is to put values directly in the config file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = filepath.Join(c.DataDir, "files")
	}
	if c.Store.BaseURL == "" {
		c.Store.BaseURL = fmt.Sprintf("http://localhost:%d/v1/store", c.Listen.Port)
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.DataDir, "history.db")
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite3"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "pipelined"
	}
	if c.MQTT.TopicBase == "" {
		c.MQTT.TopicBase = "pipelined"
	}
	if c.Observer.QueueCapacity == 0 {
		c.Observer.QueueCapacity = 10
	}
	if c.Observer.SendTimeoutMS == 0 {
		c.Observer.SendTimeoutMS = 250
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.History.Driver != "sqlite3" && c.History.Driver != "sqlite" {
		return fmt.Errorf("history.driver %q must be sqlite3 or sqlite", c.History.Driver)
	}
	if c.Observer.QueueCapacity < 1 {
		return fmt.Errorf("observer.queue_capacity must be >= 1, got %d", c.Observer.QueueCapacity)
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url required when mqtt.enabled is true")
	}
	return nil
}

// Default returns a default configuration suitable for local development.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
