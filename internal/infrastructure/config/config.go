package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and overrides are read.
const (
	DefaultTopicPrefix       = "msh/2/json"
	DefaultMQTTPort          = 1883
	DefaultRadioPort         = 4403
	DefaultKeepAliveInterval = 3600 // seconds
	DefaultConnectTimeout    = 30   // seconds

	clientIDPrefix = "meshtastic2hass-"
)

// Config is the root configuration structure for meshtastic2hass.
// All configuration is loaded from YAML and can be overridden by environment
// variables and command-line flags.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Radio   RadioConfig   `yaml:"radio"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Logging LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	// Password must never be logged. Use String() for safe output.
	Password string `yaml:"password"`
}

// String returns a representation with the password masked.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MarshalJSON implements json.Marshaler to redact the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type redacted MQTTAuthConfig
	safe := redacted(a)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// RadioConfig selects how the Meshtastic device is reached.
// Exactly one of Device or Host must be set.
type RadioConfig struct {
	// Device is a serial port path, e.g. /dev/ttyUSB0.
	Device string `yaml:"device"`

	// Host is a TCP host or host:port of a network-connected node.
	// Port defaults to 4403.
	Host string `yaml:"host"`

	// ConnectTimeout bounds the open + config handshake (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`
}

// BridgeConfig contains translation settings.
type BridgeConfig struct {
	// Nodes is the short-name allow-list. Empty means every node is bridged.
	Nodes []string `yaml:"nodes"`

	// KeepAliveInterval is the channel discovery republish period (seconds).
	KeepAliveInterval int `yaml:"keepalive_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Override mutates a loaded configuration before validation.
// The CLI uses it to apply explicitly set flags.
type Override func(*Config)

// Load reads configuration and applies overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (skipped when path is empty)
//  3. Environment variables (M2H_SECTION_KEY)
//  4. Override functions, in order
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	for _, override := range overrides {
		if override != nil {
			override(cfg)
		}
	}

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: DefaultMQTTPort,
			},
			TopicPrefix: DefaultTopicPrefix,
		},
		Radio: RadioConfig{
			ConnectTimeout: DefaultConnectTimeout,
		},
		Bridge: BridgeConfig{
			KeepAliveInterval: DefaultKeepAliveInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: M2H_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("M2H_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("M2H_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("M2H_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("M2H_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("M2H_MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}

	// Radio
	// Either variable replaces the file's radio target. Setting both is
	// left for Validate to reject.
	device, host := os.Getenv("M2H_RADIO_DEVICE"), os.Getenv("M2H_RADIO_HOST")
	switch {
	case device != "" && host != "":
		cfg.Radio.Device, cfg.Radio.Host = device, host
	case device != "":
		cfg.Radio.Device, cfg.Radio.Host = device, ""
	case host != "":
		cfg.Radio.Device, cfg.Radio.Host = "", host
	}

	// Logging
	if v := os.Getenv("M2H_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: ErrInvalidConfig listing every failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	prefix := c.MQTT.TopicPrefix
	switch {
	case prefix == "":
		errs = append(errs, "mqtt.topic_prefix is required")
	case strings.ContainsAny(prefix, "+#"):
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	case strings.HasSuffix(prefix, "/"):
		errs = append(errs, "mqtt.topic_prefix must not end with '/'")
	}

	// Radio validation
	switch {
	case c.Radio.Device == "" && c.Radio.Host == "":
		errs = append(errs, "one of radio.device or radio.host is required")
	case c.Radio.Device != "" && c.Radio.Host != "":
		errs = append(errs, "radio.device and radio.host are mutually exclusive")
	}
	if c.Radio.ConnectTimeout <= 0 {
		errs = append(errs, "radio.connect_timeout must be positive")
	}

	// Bridge validation
	if c.Bridge.KeepAliveInterval <= 0 {
		errs = append(errs, "bridge.keepalive_interval must be positive")
	}
	for _, n := range c.Bridge.Nodes {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, "bridge.nodes must not contain empty names")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// GetKeepAliveInterval returns the keep-alive interval as a Duration.
func (c *Config) GetKeepAliveInterval() time.Duration {
	return time.Duration(c.Bridge.KeepAliveInterval) * time.Second
}

// GetConnectTimeout returns the radio connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Radio.ConnectTimeout) * time.Second
}
