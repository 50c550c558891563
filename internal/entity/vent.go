package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

// Fixed ids and names of the ventilation entities.
const (
	VentModeSelectID   = "comfortclick-apartment-vent-mode-select"
	VentTempSelectID   = "comfortclick-apartment-vent-temp-select"
	VentTempSensorID   = "comfortclick-apartment-vent-temperature-sensor"
	ventModeSelectName = "Ventilation mode"
	ventTempSelectName = "Ventilation temperature"
	ventTempSensorName = "Ventilation air temperature"
)

// VentModeSelect selects the ventilation preset.
type VentModeSelect struct {
	cfg  devices.VentConfig
	deps Options
	n    *notifier
}

// NewVentModeSelect creates the ventilation preset select.
func NewVentModeSelect(cfg devices.VentConfig, deps Options) *VentModeSelect {
	return &VentModeSelect{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(VentModeSelectID, ventModeSelectName, KindSelect, deps),
	}
}

func (v *VentModeSelect) UniqueID() string { return v.n.id }
func (v *VentModeSelect) Name() string     { return ventModeSelectName }
func (v *VentModeSelect) Kind() Kind       { return KindSelect }
func (v *VentModeSelect) State() State     { return v.n.state() }

// Options returns the selectable presets.
func (v *VentModeSelect) Options() []string {
	out := make([]string, len(VentModes))
	for i, m := range VentModes {
		out[i] = string(m)
	}
	return out
}

// HandleUpdate emits the highest-priority active preset. When no preset
// point is truthy the previous selection stands.
func (v *VentModeSelect) HandleUpdate() {
	if mode, ok := ResolveVentMode(v.deps.Reader, v.cfg); ok {
		v.n.emit(string(mode))
	}
}

// SelectOption switches the preset by setting its point. The panel clears
// the others.
func (v *VentModeSelect) SelectOption(ctx context.Context, option string) error {
	for _, m := range VentModes {
		if string(m) == option {
			v.deps.logDebug("changing ventilation mode", "option", option)
			return v.deps.Writer.SetValue(ctx, ventModeID(v.cfg, m), true)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownOption, option)
}

// Handle accepts select_option.
func (v *VentModeSelect) Handle(ctx context.Context, cmd Command) error {
	return handleSelect(ctx, cmd, v.SelectOption)
}

// VentTempSelect selects warm or cold supply air.
type VentTempSelect struct {
	cfg  devices.VentConfig
	deps Options
	n    *notifier
}

// NewVentTempSelect creates the supply air temperature select.
func NewVentTempSelect(cfg devices.VentConfig, deps Options) *VentTempSelect {
	return &VentTempSelect{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(VentTempSelectID, ventTempSelectName, KindSelect, deps),
	}
}

func (v *VentTempSelect) UniqueID() string { return v.n.id }
func (v *VentTempSelect) Name() string     { return ventTempSelectName }
func (v *VentTempSelect) Kind() Kind       { return KindSelect }
func (v *VentTempSelect) State() State     { return v.n.state() }

// Options returns the selectable temperature options.
func (v *VentTempSelect) Options() []string {
	return append([]string(nil), VentTempOptions...)
}

// HandleUpdate emits the option matching the winter mode point.
func (v *VentTempSelect) HandleUpdate() {
	v.n.emit(VentTempOption(v.deps.Reader, v.cfg))
}

// SelectOption writes winter mode and adopts the option once the write succeeded.
func (v *VentTempSelect) SelectOption(ctx context.Context, option string) error {
	var winter bool
	switch option {
	case VentWarmAir:
		winter = true
	case VentColdAir:
		winter = false
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	v.deps.logDebug("changing ventilation temperature", "option", option)
	if err := v.deps.Writer.SetValue(ctx, v.cfg.WinterModeID, winter); err != nil {
		return err
	}
	v.n.emit(option)
	return nil
}

// Handle accepts select_option.
func (v *VentTempSelect) Handle(ctx context.Context, cmd Command) error {
	return handleSelect(ctx, cmd, v.SelectOption)
}

// VentTempSensor reports the supply air temperature of the active preset.
type VentTempSensor struct {
	cfg  devices.VentConfig
	deps Options
	n    *notifier
}

// NewVentTempSensor creates the supply air temperature sensor.
func NewVentTempSensor(cfg devices.VentConfig, deps Options) *VentTempSensor {
	return &VentTempSensor{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(VentTempSensorID, ventTempSensorName, KindSensor, deps),
	}
}

func (v *VentTempSensor) UniqueID() string { return v.n.id }
func (v *VentTempSensor) Name() string     { return ventTempSensorName }
func (v *VentTempSensor) Kind() Kind       { return KindSensor }
func (v *VentTempSensor) State() State     { return v.n.state() }

// Description returns the temperature sensor description.
func (v *VentTempSensor) Description() devices.SensorDescription {
	return devices.VentTemperatureSensor
}

// HandleUpdate emits the active preset and its air temperature. With no
// active preset the previous reading stands.
func (v *VentTempSensor) HandleUpdate() {
	if reading, ok := ResolveVentTemperature(v.deps.Reader, v.cfg); ok {
		v.n.emit(reading)
	}
}

func handleSelect(ctx context.Context, cmd Command, selectOption func(context.Context, string) error) error {
	if cmd.Name != CommandSelectOption {
		return fmt.Errorf("%w: %s on select", ErrUnsupportedCommand, cmd.Name)
	}
	option, ok := cmd.Value.(string)
	if !ok {
		return fmt.Errorf("%w: option %v", ErrInvalidValue, cmd.Value)
	}
	return selectOption(ctx, option)
}
