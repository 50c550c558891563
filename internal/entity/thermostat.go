package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

// ThermostatState is the derived state of a room thermostat.
type ThermostatState struct {
	CurrentTemperature float64    `json:"current_temperature"`
	TargetTemperature  float64    `json:"target_temperature"`
	Action             HVACAction `json:"hvac_action"`
	Mode               string     `json:"hvac_mode"`
}

// Thermostat is a room thermostat in heat_cool mode.
type Thermostat struct {
	cfg  devices.ThermostatConfig
	deps Options
	n    *notifier
}

// NewThermostat creates a thermostat entity.
func NewThermostat(cfg devices.ThermostatConfig, deps Options) *Thermostat {
	return &Thermostat{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(cfg.UniqueID(), cfg.Name, KindClimate, deps),
	}
}

func (t *Thermostat) UniqueID() string { return t.n.id }
func (t *Thermostat) Name() string     { return t.cfg.Name }
func (t *Thermostat) Kind() Kind       { return KindClimate }
func (t *Thermostat) State() State     { return t.n.state() }

// Config returns the thermostat's device record.
func (t *Thermostat) Config() devices.ThermostatConfig { return t.cfg }

// HandleUpdate emits temperatures and action when any of them changed.
func (t *Thermostat) HandleUpdate() {
	t.n.emit(ThermostatState{
		CurrentTemperature: Temperature(t.deps.Reader, t.cfg.CurrentTemperatureID),
		TargetTemperature:  Temperature(t.deps.Reader, t.cfg.TargetTemperatureID),
		Action:             ThermostatAction(t.deps.Reader, t.cfg),
		Mode:               HVACModeHeatCool,
	})
}

// SetTargetTemperature writes a new target. Values outside [min, max] are
// rejected without contacting the panel.
func (t *Thermostat) SetTargetTemperature(ctx context.Context, temperature float64) error {
	if temperature < float64(t.cfg.MinTemp) || temperature > float64(t.cfg.MaxTemp) {
		return fmt.Errorf("%w: %.1f not in [%d, %d]", ErrOutOfRange, temperature, t.cfg.MinTemp, t.cfg.MaxTemp)
	}
	t.deps.logDebug("updating target temperature", "entity_id", t.n.id, "temperature", temperature)
	return t.deps.Writer.SetValue(ctx, t.cfg.TargetTemperatureID, temperature)
}

// Handle accepts set_temperature with a numeric value.
func (t *Thermostat) Handle(ctx context.Context, cmd Command) error {
	if cmd.Name != CommandSetTemperature {
		return fmt.Errorf("%w: %s on climate", ErrUnsupportedCommand, cmd.Name)
	}
	temperature, ok := toFloat(cmd.Value)
	if !ok {
		return fmt.Errorf("%w: temperature %v", ErrInvalidValue, cmd.Value)
	}
	return t.SetTargetTemperature(ctx, temperature)
}
