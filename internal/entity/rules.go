package entity

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

const (
	// FanOnThreshold is the fan speed above which a fan counts as running.
	// Panels report anything from 0 to 2 when idle and 10 or more when on.
	FanOnThreshold = 5.0

	// CoolingDelta is how far the room must sit above target before the fan runs.
	CoolingDelta = 0.25
)

// HVACAction is what a thermostat is currently doing.
type HVACAction string

// HVAC actions.
const (
	HVACHeating HVACAction = "heating"
	HVACCooling HVACAction = "cooling"
	HVACIdle    HVACAction = "idle"
)

// HVACModeHeatCool is the only mode the panel thermostats support.
const HVACModeHeatCool = "heat_cool"

// VentMode is a ventilation preset.
type VentMode string

// Ventilation presets in resolution priority order.
const (
	VentHome   VentMode = "Home"
	VentAway   VentMode = "Away"
	VentGuests VentMode = "Guests"
)

// VentModes lists the presets in priority order.
var VentModes = []VentMode{VentHome, VentAway, VentGuests}

// Ventilation temperature options.
const (
	VentWarmAir = "Warm air"
	VentColdAir = "Cold air"
)

// VentTempOptions lists the ventilation temperature options.
var VentTempOptions = []string{VentWarmAir, VentColdAir}

// FanOn derives whether a room fan is running.
//
// Heating always wins. Otherwise the fan is held off while its lock point is
// truthy. With both temperature points configured it runs once the room is
// CoolingDelta above target; without them the fan speed point decides, and
// with neither it runs whenever unlocked.
func FanOn(r Reader, cfg devices.FanConfig) bool {
	if truthy(r.GetValue(cfg.HeatingID)) {
		return false
	}
	if truthy(r.GetValue(cfg.LockID)) {
		return false
	}
	if cfg.CurrentTemperatureID != "" && cfg.TargetTemperatureID != "" {
		current := floatOrZero(r.GetValue(cfg.CurrentTemperatureID))
		target := floatOrZero(r.GetValue(cfg.TargetTemperatureID))
		return current-target >= CoolingDelta
	}
	if cfg.FanID != "" {
		return floatOrZero(r.GetValue(cfg.FanID)) > FanOnThreshold
	}
	return true
}

// ThermostatAction derives the HVAC action of a room.
func ThermostatAction(r Reader, cfg devices.ThermostatConfig) HVACAction {
	if truthy(r.GetValue(cfg.HeatingID)) {
		return HVACHeating
	}
	if cfg.FanID == "" {
		return HVACIdle
	}
	if floatOrZero(r.GetValue(cfg.FanID)) > FanOnThreshold {
		return HVACCooling
	}
	return HVACIdle
}

// Temperature reads a temperature point rounded to one decimal, 0 when unknown.
func Temperature(r Reader, name string) float64 {
	return round1(floatOrZero(r.GetValue(name)))
}

// DoorOpen reports whether a door point is truthy.
func DoorOpen(r Reader, name string) bool {
	return truthy(r.GetValue(name))
}

// ResolveVentMode returns the first truthy preset in priority order.
// ok is false when no preset point is truthy.
func ResolveVentMode(r Reader, cfg devices.VentConfig) (mode VentMode, ok bool) {
	for _, m := range VentModes {
		if truthy(r.GetValue(ventModeID(cfg, m))) {
			return m, true
		}
	}
	return "", false
}

// VentTempOption maps the winter mode point to a temperature option.
func VentTempOption(r Reader, cfg devices.VentConfig) string {
	if truthy(r.GetValue(cfg.WinterModeID)) {
		return VentWarmAir
	}
	return VentColdAir
}

// VentTemperature is the supply air temperature of the active preset.
type VentTemperature struct {
	Mode  VentMode `json:"mode"`
	Value any      `json:"value"`
}

// ResolveVentTemperature reads the air temperature paired with the active preset.
func ResolveVentTemperature(r Reader, cfg devices.VentConfig) (VentTemperature, bool) {
	mode, ok := ResolveVentMode(r, cfg)
	if !ok {
		return VentTemperature{}, false
	}
	return VentTemperature{Mode: mode, Value: r.GetValue(ventAirTempID(cfg, mode))}, true
}

func ventModeID(cfg devices.VentConfig, m VentMode) string {
	switch m {
	case VentHome:
		return cfg.HomeModeID
	case VentAway:
		return cfg.AwayModeID
	case VentGuests:
		return cfg.GuestModeID
	}
	return ""
}

func ventAirTempID(cfg devices.VentConfig, m VentMode) string {
	switch m {
	case VentHome:
		return cfg.HomeAirTempID
	case VentAway:
		return cfg.AwayAirTempID
	case VentGuests:
		return cfg.GuestAirTempID
	}
	return ""
}

// truthy applies the panel's loose truth rules: nil, false, zero and the
// empty string are false; everything else is true.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

// toFloat converts a raw value to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func floatOrZero(v any) float64 {
	f, _ := toFloat(v)
	return f
}

// round1 rounds to one decimal from the exact binary value, ties to even,
// so 22.25 reads as 22.2 and 0.15 as 0.1.
func round1(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}
