// Package entity turns cached panel values into device states.
//
// Every entity implements the same capability: on HandleUpdate it reads the
// values it cares about, derives its semantic state and emits a State to
// its Sink only when that state differs from the last one emitted.
//
// Entities:
//
//   - Fan: on/off inferred from heating, lock, temperature delta and fan speed
//   - Thermostat: current and target temperature plus an inferred HVAC action
//   - Lock: open while the door point is truthy; unlock is momentary
//   - VentModeSelect: Home, Away or Guests resolved in that priority order
//   - VentTempSelect: winter mode mapped to "Warm air" or "Cold air"
//   - VentTempSensor: supply air temperature of the active ventilation mode
//   - UtilitySensor: raw meter reading passed through unchanged
//
// Entities hold a read-only Reader over the value cache and a Writer for
// commands. Nothing here owns the cache or the poll schedule; the coordinator
// calls Registry.HandleUpdate after each successful poll.
//
// Optimistic updates (unlock, vent temperature select) are applied only
// after the panel accepted the write. A later poll always wins.
package entity
