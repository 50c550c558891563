package devices

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thermostat defaults applied when a record omits them.
const (
	DefaultTargetTemperatureStep = 0.5
	DefaultMinTemp               = 18
	DefaultMaxTemp               = 24
)

// Config is the full set of device configuration records.
type Config struct {
	Fans        []FanConfig        `yaml:"fans"`
	Locks       []LockConfig       `yaml:"locks"`
	Thermostats []ThermostatConfig `yaml:"thermostats"`
	Utilities   []UtilityConfig    `yaml:"utilities"`

	// Vent is nil when the installation has no ventilation unit.
	Vent *VentConfig `yaml:"vent"`
}

// FanConfig describes a room fan controlled through a lock point.
type FanConfig struct {
	Name      string `yaml:"name"`
	HeatingID string `yaml:"heating_id"`

	// LockID is inverted: a truthy lock means the fan is held off.
	LockID string `yaml:"lock_id"`
	FanID  string `yaml:"fan_id"`

	CurrentTemperatureID string `yaml:"current_temperature_id"`
	TargetTemperatureID  string `yaml:"target_temperature_id"`
}

// UniqueID returns fan_id, or lock_id when no fan speed point is configured.
func (f FanConfig) UniqueID() string {
	if f.FanID != "" {
		return f.FanID
	}
	return f.LockID
}

// LockConfig describes a door with a momentary unlock point.
type LockConfig struct {
	DoorName string `yaml:"door_name"`
	DoorID   string `yaml:"door_id"`
}

// ThermostatConfig describes a room thermostat.
type ThermostatConfig struct {
	Name      string `yaml:"name"`
	HeatingID string `yaml:"heating_id"`
	// FanID is optional; without it the room can never report cooling.
	FanID                string `yaml:"fan_id"`
	CurrentTemperatureID string `yaml:"current_temperature_id"`
	TargetTemperatureID  string `yaml:"target_temperature_id"`

	TargetTemperatureStep float64 `yaml:"target_temperature_step"`
	MinTemp               int     `yaml:"min_temp"`
	MaxTemp               int     `yaml:"max_temp"`
}

// UnmarshalYAML decodes a thermostat record, filling defaults for omitted fields.
func (t *ThermostatConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ThermostatConfig
	p := plain{
		TargetTemperatureStep: DefaultTargetTemperatureStep,
		MinTemp:               DefaultMinTemp,
		MaxTemp:               DefaultMaxTemp,
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = ThermostatConfig(p)
	return nil
}

// UniqueID returns the thermostat's stable id.
func (t ThermostatConfig) UniqueID() string {
	return "room-1-" + t.HeatingID
}

// UtilityConfig describes a metering point exposed as a sensor.
type UtilityConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Description is resolved from Type by Load.
	Description SensorDescription `yaml:"-"`
}

// VentConfig names the ventilation unit's points.
type VentConfig struct {
	WinterModeID string `yaml:"vent_winter_mode"`

	AwayModeID  string `yaml:"away_mode"`
	HomeModeID  string `yaml:"home_mode"`
	GuestModeID string `yaml:"guest_mode"`

	AwayAirTempID  string `yaml:"away_vent_air_temp"`
	HomeAirTempID  string `yaml:"home_vent_air_temp"`
	GuestAirTempID string `yaml:"guest_vent_air_temp"`
}

// Load reads and validates the devices file at path.
//
// Returns:
//   - *Config: records with utility descriptions resolved
//   - error: read or parse failure, *UnknownDescriptionTypeError for an
//     unsupported utility type, or a validation error
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates devices YAML.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing devices file: %w", err)
	}

	for i := range cfg.Utilities {
		desc, err := DescriptionFor(cfg.Utilities[i].Type)
		if err != nil {
			return nil, fmt.Errorf("utilities[%d]: %w", i, err)
		}
		cfg.Utilities[i].Description = desc
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating devices file: %w", err)
	}
	return cfg, nil
}

// Validate checks that every record carries its primary identifier.
func (c *Config) Validate() error {
	var errs []string

	for i, f := range c.Fans {
		if f.LockID == "" {
			errs = append(errs, fmt.Sprintf("fans[%d].lock_id is required", i))
		}
	}
	for i, l := range c.Locks {
		if l.DoorID == "" {
			errs = append(errs, fmt.Sprintf("locks[%d].door_id is required", i))
		}
	}
	for i, t := range c.Thermostats {
		if t.HeatingID == "" {
			errs = append(errs, fmt.Sprintf("thermostats[%d].heating_id is required", i))
		}
		if t.MinTemp > t.MaxTemp {
			errs = append(errs, fmt.Sprintf("thermostats[%d].min_temp must not exceed max_temp", i))
		}
		if t.TargetTemperatureStep <= 0 {
			errs = append(errs, fmt.Sprintf("thermostats[%d].target_temperature_step must be positive", i))
		}
	}
	for i, u := range c.Utilities {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("utilities[%d].id is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("device configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
