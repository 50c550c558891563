package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a default configuration with the required panel fields set.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Panel.Host = "https://192.168.1.20"
	cfg.Panel.Username = "admin"
	cfg.Panel.Password = "1234"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
panel:
  host: "https://10.0.0.5"
  username: "panel-user"
  password: "panel-pass"
  poll_interval: 2
  devices_file: "/etc/comfortclick/devices.yaml"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Panel.Host != "https://10.0.0.5" {
		t.Errorf("Panel.Host = %q, want %q", cfg.Panel.Host, "https://10.0.0.5")
	}
	if cfg.Panel.PollInterval != 2 {
		t.Errorf("Panel.PollInterval = %d, want 2", cfg.Panel.PollInterval)
	}
	if cfg.Panel.DevicesFile != "/etc/comfortclick/devices.yaml" {
		t.Errorf("Panel.DevicesFile = %q", cfg.Panel.DevicesFile)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "test-client")
	}

	// Defaults survive for sections the file does not mention.
	if cfg.HomeAssistant.DiscoveryPrefix != "homeassistant" {
		t.Errorf("HomeAssistant.DiscoveryPrefix = %q, want %q", cfg.HomeAssistant.DiscoveryPrefix, "homeassistant")
	}
	if cfg.Panel.RequestTimeout != 10 {
		t.Errorf("Panel.RequestTimeout = %d, want 10", cfg.Panel.RequestTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
panel:
  host: "ab"
  username: "admin"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for short panel.host, got nil")
	}
	if !strings.Contains(err.Error(), "panel.host") {
		t.Errorf("error = %v, want mention of panel.host", err)
	}
}

func TestLoad_EnvSuppliesCredentials(t *testing.T) {
	content := `
panel:
  host: "https://10.0.0.5"
`
	t.Setenv("COMFORTCLICK_PANEL_USERNAME", "env-user")
	t.Setenv("COMFORTCLICK_PANEL_PASSWORD", "env-pass")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Panel.Username != "env-user" || cfg.Panel.Password != "env-pass" {
		t.Errorf("credentials = %q/%q, want env-user/env-pass", cfg.Panel.Username, cfg.Panel.Password)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "host too short", mutate: func(c *Config) { c.Panel.Host = "h:" }, wantErr: true},
		{name: "host exactly three characters", mutate: func(c *Config) { c.Panel.Host = "a.b" }, wantErr: false},
		{name: "missing username", mutate: func(c *Config) { c.Panel.Username = "" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Panel.PollInterval = 0 }, wantErr: true},
		{name: "missing devices file", mutate: func(c *Config) { c.Panel.DevicesFile = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "port ignored when api disabled", mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, wantErr: false},
		{name: "empty topic prefix", mutate: func(c *Config) { c.HomeAssistant.TopicPrefix = "" }, wantErr: true},
		{
			name: "influxdb enabled without bucket",
			mutate: func(c *Config) {
				c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://localhost:8086", Org: "home"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Panel.Host = ""
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	msg := err.Error()
	for _, want := range []string{"panel.host", "database.path"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Panel: PanelConfig{PollInterval: 1, RequestTimeout: 7},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetPollInterval(); got != time.Second {
		t.Errorf("GetPollInterval() = %v, want 1s", got)
	}
	if got := cfg.GetRequestTimeout(); got != 7*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 7s", got)
	}
	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("COMFORTCLICK_PANEL_HOST", "https://panel.local")
	t.Setenv("COMFORTCLICK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("COMFORTCLICK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("COMFORTCLICK_MQTT_USERNAME", "testuser")
	t.Setenv("COMFORTCLICK_MQTT_PASSWORD", "testpass")
	t.Setenv("COMFORTCLICK_API_HOST", "192.168.1.1")
	t.Setenv("COMFORTCLICK_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("COMFORTCLICK_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Panel.Host", cfg.Panel.Host, "https://panel.local"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Panel.PollInterval != 1 {
		t.Errorf("defaultConfig Panel.PollInterval = %d, want 1", cfg.Panel.PollInterval)
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.StatusTopic != "comfortclick/status" {
		t.Errorf("defaultConfig MQTT.StatusTopic = %q", cfg.MQTT.StatusTopic)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
