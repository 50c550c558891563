package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minHostLength mirrors the panel setup check: anything shorter cannot be a URL.
const minHostLength = 3

// Config is the root configuration structure for the ComfortClick bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Panel         PanelConfig         `yaml:"panel"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PanelConfig contains the ComfortClick panel connection settings.
type PanelConfig struct {
	// Host is the panel base URL including scheme, e.g. "https://192.168.1.20".
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PollInterval is the steady-state poll period in seconds.
	PollInterval int `yaml:"poll_interval"`

	// RequestTimeout bounds a single HTTP round trip in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// DevicesFile is the path to the device configuration records.
	DevicesFile string `yaml:"devices_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic receives the retained online/offline payload and the LWT.
	StatusTopic string `yaml:"status_topic"`
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
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HomeAssistantConfig controls the MQTT discovery surface.
type HomeAssistantConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: COMFORTCLICK_SECTION_KEY
// For example: COMFORTCLICK_PANEL_PASSWORD, COMFORTCLICK_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			PollInterval:   1,
			RequestTimeout: 10,
			DevicesFile:    "configs/devices.yaml",
		},
		Database: DatabaseConfig{
			Path:        "./data/comfortclick.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "comfortclick-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			StatusTopic: "comfortclick/status",
		},
		HomeAssistant: HomeAssistantConfig{
			Enabled:         true,
			DiscoveryPrefix: "homeassistant",
			TopicPrefix:     "comfortclick",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	// Panel
	if v := os.Getenv("COMFORTCLICK_PANEL_HOST"); v != "" {
		cfg.Panel.Host = v
	}
	if v := os.Getenv("COMFORTCLICK_PANEL_USERNAME"); v != "" {
		cfg.Panel.Username = v
	}
	if v := os.Getenv("COMFORTCLICK_PANEL_PASSWORD"); v != "" {
		cfg.Panel.Password = v
	}

	// Database
	if v := os.Getenv("COMFORTCLICK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("COMFORTCLICK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("COMFORTCLICK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("COMFORTCLICK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("COMFORTCLICK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("COMFORTCLICK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("COMFORTCLICK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Panel validation
	if len(c.Panel.Host) < minHostLength {
		errs = append(errs, "panel.host must be at least 3 characters")
	}
	if c.Panel.Username == "" {
		errs = append(errs, "panel.username is required (set COMFORTCLICK_PANEL_USERNAME environment variable)")
	}
	if c.Panel.PollInterval < 1 {
		errs = append(errs, "panel.poll_interval must be at least 1 second")
	}
	if c.Panel.RequestTimeout < 0 {
		errs = append(errs, "panel.request_timeout cannot be negative")
	}
	if c.Panel.DevicesFile == "" {
		errs = append(errs, "panel.devices_file is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.HomeAssistant.Enabled && c.HomeAssistant.TopicPrefix == "" {
		errs = append(errs, "homeassistant.topic_prefix is required when homeassistant is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the panel poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Panel.PollInterval) * time.Second
}

// GetRequestTimeout returns the panel request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Panel.RequestTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
